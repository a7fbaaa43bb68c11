package scorer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/awc-invest/prospect-cli/internal/model"
	"github.com/awc-invest/prospect-cli/internal/store"
	"github.com/awc-invest/prospect-cli/pkg/anthropic"
)

// deployPrompt asks for a capital-deployability judgement on one company.
const deployPrompt = `You are evaluating a Norwegian company as a capital deployment target for a small acquisition fund. Based on the company profile and financial summary, estimate how realistic a majority acquisition is: ownership concentration, typical succession pressure in the segment, and whether the size fits a 20-200 MNOK equity ticket.

Respond with ONLY valid JSON, no other text:
{"deployability": 0.0, "explanation": "brief reasoning"}`

type deployResponse struct {
	Deployability float64 `json:"deployability"`
	Explanation   string  `json:"explanation"`
}

// Estimator updates deal-likelihood multipliers for top-scored companies
// using a language model.
type Estimator struct {
	Store *store.Store
	AI    anthropic.Client
	Model string

	MaxTokens int64
}

// EstimateTop re-estimates deal likelihood for the limit highest-priority
// companies of a fiscal year. A failed estimate is logged and skipped, never
// fatal: partial progress is kept and re-running converges.
func (e *Estimator) EstimateTop(ctx context.Context, fiscalYear, limit int, view model.AccountView) (int, error) {
	log := zap.L().With(zap.String("component", "scorer.deployability"))

	scores, err := e.Store.TopScores(ctx, fiscalYear, limit)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, sc := range scores {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}

		company, err := e.Store.GetCompany(ctx, sc.Orgnr)
		if err != nil {
			return updated, err
		}
		if company == nil {
			continue
		}

		window, err := e.Store.MetricsWindow(ctx, sc.Orgnr, view, fiscalYear, 1)
		if err != nil {
			return updated, err
		}

		likelihood, note, estErr := e.estimate(ctx, *company, window)
		if estErr != nil {
			log.Warn("deployability estimate failed",
				zap.String("orgnr", sc.Orgnr), zap.Error(estErr))
			continue
		}

		if err := e.Store.UpdateDealLikelihood(ctx, sc.Orgnr, fiscalYear, likelihood, note); err != nil {
			return updated, err
		}
		updated++
	}

	log.Info("deployability estimates updated",
		zap.Int("fiscal_year", fiscalYear), zap.Int("updated", updated))
	return updated, nil
}

func (e *Estimator) estimate(ctx context.Context, c model.Company, window []model.MetricSnapshot) (float64, string, error) {
	resp, err := e.AI.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.Model,
		MaxTokens: e.MaxTokens,
		System:    deployPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: companyBrief(c, window)}},
	})
	if err != nil {
		return 0, "", eris.Wrap(err, "scorer: deployability request")
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return 0, "", eris.New("scorer: empty deployability response")
	}

	// The model may wrap the JSON in prose; take the outermost object.
	jsonStart := strings.Index(text, "{")
	jsonEnd := strings.LastIndex(text, "}")
	if jsonStart < 0 || jsonEnd <= jsonStart {
		return 0, "", eris.Errorf("scorer: no JSON in deployability response: %s", text)
	}

	var result deployResponse
	if err := json.Unmarshal([]byte(text[jsonStart:jsonEnd+1]), &result); err != nil {
		return 0, "", eris.Wrap(err, "scorer: parse deployability JSON")
	}

	return clamp(result.Deployability, 0, 1), result.Explanation, nil
}

// companyBrief renders the profile and latest financials the model sees.
func companyBrief(c model.Company, window []model.MetricSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s (orgnr %s)\n", c.Name, c.Orgnr)
	if c.NACE != "" {
		fmt.Fprintf(&b, "Industry (NACE): %s\n", c.NACE)
	}
	if c.Municipality != "" {
		fmt.Fprintf(&b, "Municipality: %s\n", c.Municipality)
	}
	if c.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", c.Description)
	}

	for _, m := range window {
		fmt.Fprintf(&b, "\nFiscal year %d (kNOK):\n", m.FiscalYear)
		writeAmount(&b, "revenue", m.Revenue)
		writeAmount(&b, "ebitda", m.EBITDA)
		writeAmount(&b, "ebit", m.EBIT)
		writeAmount(&b, "equity", m.Equity)
		writeAmount(&b, "net debt", m.NetDebt)
	}
	return b.String()
}

func writeAmount(b *strings.Builder, label string, v *float64) {
	if v == nil {
		return
	}
	fmt.Fprintf(b, "  %s: %.0f\n", label, *v)
}

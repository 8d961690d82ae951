package factory

import (
	"github.com/mikey/chain-risk/internal/config"
	"github.com/mikey/chain-risk/internal/explainer"
	"go.uber.org/zap"
)

// CreateExplainer builds the rule explainer, using explainer.rules from the
// config file when present
func CreateExplainer(cfg *config.Config, logger *zap.Logger) (*explainer.Explainer, error) {
	ruleCfgs, err := cfg.GetRules()
	if err != nil {
		return nil, err
	}

	rules := make([]explainer.Rule, 0, len(ruleCfgs))
	for _, rc := range ruleCfgs {
		rules = append(rules, explainer.Rule{
			ID:          rc.ID,
			Name:        rc.Name,
			Description: rc.Description,
			Feature:     rc.Feature,
			Threshold:   rc.Threshold,
			Comparison:  explainer.Comparison(rc.Comparison),
			Weight:      rc.Weight,
			Template:    rc.Template,
			Format:      explainer.ValueFormat(rc.Format),
		})
	}

	e, err := explainer.New(rules)
	if err != nil {
		return nil, err
	}
	if len(rules) > 0 {
		logger.Info("Loaded custom risk rules", zap.Int("rules", len(rules)))
	}
	return e, nil
}

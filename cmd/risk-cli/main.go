package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/mikey/chain-risk/internal/core"
	"github.com/mikey/chain-risk/internal/di"
	"github.com/mikey/chain-risk/internal/features"
	"github.com/mikey/chain-risk/internal/models"
	"go.uber.org/zap"
)

func main() {
	flags, err := di.ParseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n\nusage:\n  risk-cli analyze -address <0x...> [-narrate]\n  risk-cli train [-labels file.csv|sample] [-models dir]\n", err)
		os.Exit(2)
	}

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	switch flags.Command {
	case "analyze":
		err = container.Invoke(analyze)
	case "train":
		err = container.Invoke(train)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func analyze(flags *di.CLIFlags, logger *zap.Logger, registry *models.Registry, service *core.AnalysisService) error {
	defer logger.Sync()

	status := registry.LoadAll()
	logger.Debug("Models loaded",
		zap.Bool("risk_model", status.RiskModel),
		zap.Bool("cluster_model", status.ClusterModel))

	ctx := context.Background()
	var (
		result *core.FullAnalysis
		err    error
	)
	if flags.Narrate {
		result, err = service.NarrateAddress(ctx, flags.Address)
	} else {
		result, err = service.AnalyzeAddress(ctx, flags.Address)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func train(flags *di.CLIFlags, logger *zap.Logger, trainer *models.Trainer) error {
	defer logger.Sync()

	var (
		addresses []string
		labels    map[string]int
		err       error
	)
	if flags.Labels == "sample" {
		logger.Warn("Training on the built-in sample labels; use -labels for real data")
		addresses, labels = features.SampleLabels()
	} else {
		addresses, labels, err = features.LoadLabels(flags.Labels)
		if err != nil {
			return err
		}
	}

	report, err := trainer.Train(context.Background(), addresses, labels)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "samples\t%d\n", report.Samples)
	fmt.Fprintf(w, "accuracy\t%.4f\n", report.RiskMetrics.Accuracy)
	fmt.Fprintf(w, "precision\t%.4f\n", report.RiskMetrics.Precision)
	fmt.Fprintf(w, "recall\t%.4f\n", report.RiskMetrics.Recall)
	fmt.Fprintf(w, "f1\t%.4f\n", report.RiskMetrics.F1)
	fmt.Fprintf(w, "auc\t%.4f\n", report.RiskMetrics.AUC)
	fmt.Fprintf(w, "inertia\t%.4f\n", report.ClusterMetrics.Inertia)
	fmt.Fprintf(w, "cluster sizes\t%v\n", report.ClusterMetrics.ClusterSizes)
	fmt.Fprintf(w, "risk model\t%s\n", report.RiskArtifact)
	fmt.Fprintf(w, "cluster model\t%s\n", report.ClusterArtifact)
	fmt.Fprintln(w, "\ntop features\t")
	for i, fi := range report.FeatureImportance {
		if i == 5 {
			break
		}
		fmt.Fprintf(w, "  %s\t%.4f\n", fi.Feature, fi.Importance)
	}
	return w.Flush()
}

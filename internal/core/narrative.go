package core

import (
	"fmt"
	"strings"
)

// NarrativePrompt renders a full analysis into the instruction sent to a narrator
func NarrativePrompt(analysis *FullAnalysis) string {
	var sb strings.Builder
	sb.WriteString("You are a blockchain compliance analyst. Write a short, plain-language summary ")
	sb.WriteString("(at most five sentences) of the following address analysis for a non-technical reader. ")
	sb.WriteString("Do not invent facts that are not listed.\n\n")
	fmt.Fprintf(&sb, "Address: %s\n", analysis.Address)

	if r := analysis.RiskAnalysis; r != nil {
		fmt.Fprintf(&sb, "Risk score: %.1f / 100 (%s)\n", r.RiskScore, r.RiskLevel)
		fmt.Fprintf(&sb, "Assessment: %s\n", r.RiskExplanation)
		if len(r.RiskFactors) > 0 {
			sb.WriteString("Risk factors:\n")
			for _, f := range r.RiskFactors {
				fmt.Fprintf(&sb, "- %s: %s\n", f.Name, f.Explanation)
			}
		}
	}

	if p := analysis.UserProfile; p != nil {
		fmt.Fprintf(&sb, "Behavioral profile: %s. %s\n", p.ClusterName, p.ClusterDescription)
	}

	sb.WriteString("\nRespond with the summary text only.")
	return sb.String()
}

package clustering

import (
	"fmt"
	"strings"

	"github.com/mikey/chain-risk/internal/core"
)

// Profile is the display text of one cluster
type Profile struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

// DefaultProfiles returns the display text for the default four clusters
func DefaultProfiles() map[int]Profile {
	return map[int]Profile{
		0: {Name: "Low-activity small holder", Summary: "Holds small balances and transacts rarely."},
		1: {Name: "Active trader", Summary: "Transacts frequently with many different counterparties."},
		2: {Name: "DeFi power user", Summary: "Interacts heavily with smart contracts and DeFi protocols."},
		3: {Name: "Large holder", Summary: "Holds large balances with comparatively few transactions."},
	}
}

type trait struct {
	feature   string
	threshold float64
	text      string
}

// traits are appended to a description in this order
var traits = []trait{
	{core.FeatureEthBalance, 10, "holds a large ETH balance"},
	{core.FeatureTokenCount, 5, "holds many different tokens"},
	{core.FeatureTransactionCount, 50, "trades very actively"},
	{core.FeatureDefiInteractionCount, 10, "uses DeFi services frequently"},
}

func profileFor(profiles map[int]Profile, cluster int) Profile {
	if p, ok := profiles[cluster]; ok {
		return p
	}
	return Profile{
		Name:    fmt.Sprintf("Cluster %d", cluster),
		Summary: fmt.Sprintf("Addresses with behavior similar to cluster %d.", cluster),
	}
}

// Describe returns the cluster summary extended with the notable traits of features
func Describe(profile Profile, features core.FeatureVector) string {
	var notable []string
	for _, t := range traits {
		if v, ok := features[t.feature]; ok && v > t.threshold {
			notable = append(notable, t.text)
		}
	}
	if len(notable) == 0 {
		return profile.Summary
	}
	return profile.Summary + " Notable traits: " + strings.Join(notable, ", ") + "."
}

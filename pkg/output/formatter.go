package output

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/ritzau/translation-network/pkg/engine"
	"github.com/ritzau/translation-network/pkg/metrics"
)

// rankedMetrics are the rankings printed in the report, in order.
var rankedMetrics = []metrics.Metric{
	metrics.MetricDegree,
	metrics.MetricBetweenness,
	metrics.MetricCloseness,
	metrics.MetricPageRank,
}

// PrintReport prints a colored network report for snap to w, with the top
// entries of each centrality ranking.
func PrintReport(w io.Writer, snap *engine.Snapshot, top int) error {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	summary := snap.View.Summary()

	bold.Fprintln(w, "Translation Network - Analysis Report")
	bold.Fprintln(w, "=====================================")
	fmt.Fprintf(w, "Records: %d\n", snap.Stats.Records)
	fmt.Fprintf(w, "Nodes: %d   Edges: %d   Total weight: %d\n", summary.Nodes, summary.Edges, summary.TotalWeight)
	mode := "undirected"
	if summary.Directed {
		mode = "directed"
	}
	fmt.Fprintf(w, "Mode: %s   Density: %.4f   Average degree: %.2f\n", mode, summary.Density, summary.AverageDegree)
	if snap.Stats.SelfLoops > 0 || snap.Stats.FilteredByType > 0 {
		yellow.Fprintf(w, "Skipped pairs: %d self-loops, %d disabled edge types\n", snap.Stats.SelfLoops, snap.Stats.FilteredByType)
	}
	if snap.Sampled {
		yellow.Fprintln(w, "Betweenness estimated from sampled sources")
	}
	fmt.Fprintln(w)

	bold.Fprintln(w, "GROUPS:")
	for _, group := range sortedKeys(summary.Groups) {
		fmt.Fprintf(w, "  %-20s %d\n", group, summary.Groups[group])
	}
	bold.Fprintln(w, "EDGE TYPES:")
	edgeTypes := make(map[string]int, len(summary.EdgeTypes))
	for t, count := range summary.EdgeTypes {
		edgeTypes[string(t)] = count
	}
	for _, t := range sortedKeys(edgeTypes) {
		fmt.Fprintf(w, "  %-20s %d\n", t, edgeTypes[t])
	}
	fmt.Fprintln(w)

	for _, m := range rankedMetrics {
		ranked, err := snap.View.TopK(m, top)
		if err != nil {
			return err
		}
		bold.Fprintf(w, "TOP %s:\n", m)
		for _, r := range ranked {
			fmt.Fprintf(w, "  %2d. ", r.Rank)
			cyan.Fprintf(w, "%-40s", r.Node.ID)
			fmt.Fprintf(w, " %s\n", formatValue(m, r.Value))
		}
		fmt.Fprintln(w)
	}

	brokers := snap.View.Brokers()
	if len(brokers) > 0 {
		bold.Fprintln(w, "BROKERS:")
		for _, b := range brokers {
			yellow.Fprintf(w, "  %s\n", b.ID)
		}
		fmt.Fprintln(w)
	}

	green.Fprintf(w, "Communities: %d (modularity %.4f, seed %d)\n", summary.Communities, summary.Modularity, snap.Communities.Seed)
	green.Fprintf(w, "Components: %d\n", summary.Components)
	if summary.Directed {
		green.Fprintf(w, "Reciprocal clusters: %d\n", summary.ReciprocalClusters)
	}
	return nil
}

func formatValue(m metrics.Metric, v float64) string {
	switch m {
	case metrics.MetricDegree, metrics.MetricInDegree, metrics.MetricOutDegree:
		return fmt.Sprintf("%d", int(v))
	}
	return fmt.Sprintf("%.6f", v)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

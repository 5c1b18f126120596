// Package export serialises analysed graphs as rows for tabular export and
// as JSON for the rendering layer.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/ritzau/translation-network/pkg/model"
)

// NodeHeader is the column order of node rows.
var NodeHeader = []string{
	"id", "name", "group",
	"degree", "inDegree", "outDegree",
	"closeness", "betweenness", "pageRank",
	"community",
}

// EdgeHeader is the column order of edge rows.
var EdgeHeader = []string{"source", "target", "weight", "type"}

// Precision is the number of decimals used for normalised metrics.
const Precision = 6

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', Precision, 64)
}

// NodeRows renders one row per node, in node order.
func NodeRows(nodes []model.Node) [][]string {
	rows := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, []string{
			n.ID,
			n.Name,
			n.Group,
			strconv.Itoa(n.Degree),
			strconv.Itoa(n.InDegree),
			strconv.Itoa(n.OutDegree),
			formatFloat(n.Closeness),
			formatFloat(n.Betweenness),
			formatFloat(n.PageRank),
			strconv.Itoa(n.Community),
		})
	}
	return rows
}

// EdgeRows renders one row per edge, in edge order.
func EdgeRows(edges []model.Edge) [][]string {
	rows := make([][]string, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, []string{e.Source, e.Target, strconv.Itoa(e.Weight), string(e.Type)})
	}
	return rows
}

// WriteNodesCSV writes a header and node rows to w.
func WriteNodesCSV(w io.Writer, nodes []model.Node) error {
	return writeCSV(w, NodeHeader, NodeRows(nodes))
}

// WriteEdgesCSV writes a header and edge rows to w.
func WriteEdgesCSV(w io.Writer, edges []model.Edge) error {
	return writeCSV(w, EdgeHeader, EdgeRows(edges))
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing csv rows: %w", err)
	}
	return nil
}

// GraphData is the node and edge list handed to the rendering layer.
type GraphData struct {
	Directed bool         `json:"directed"`
	Nodes    []model.Node `json:"nodes"`
	Edges    []model.Edge `json:"edges"`
}

// NewGraphData snapshots g's node and edge lists.
func NewGraphData(g *model.Graph) GraphData {
	return GraphData{
		Directed: g.Directed(),
		Nodes:    g.Nodes(),
		Edges:    g.Edges(),
	}
}

// WriteJSON writes g as indented JSON.
func WriteJSON(w io.Writer, g *model.Graph) error {
	if g == nil {
		return model.ErrNilGraph
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewGraphData(g)); err != nil {
		return fmt.Errorf("encoding graph: %w", err)
	}
	return nil
}

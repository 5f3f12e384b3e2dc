package main

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// renderChart draws per-operation latency bars, one colored series per
// structure, and saves the chart as a PNG.
func renderChart(results []benchResult, path string) error {
	// Group latencies: series name → value per operation column.
	ops := []string{"insert", "range"}
	series := map[string]plotter.Values{}
	order := []string{}
	for _, res := range results {
		if _, ok := series[res.Name]; !ok {
			series[res.Name] = make(plotter.Values, len(ops))
			order = append(order, res.Name)
		}
		for i, op := range ops {
			if res.Operation == op {
				series[res.Name][i] = float64(res.LatencyNs)
			}
		}
	}

	p := plot.New()
	p.Title.Text = "Index benchmark"
	p.Y.Label.Text = "ns/op"

	w := vg.Points(24)
	offset := -w * vg.Length(len(order)-1) / 2
	for i, name := range order {
		bars, err := plotter.NewBarChart(series[name], w)
		if err != nil {
			return fmt.Errorf("bar chart for %s: %w", name, err)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		bars.Offset = offset + w*vg.Length(i)
		p.Add(bars)
		p.Legend.Add(name, bars)
	}

	p.Legend.Top = true
	p.NominalX(ops...)

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

package compiler

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/specialistvlad/tensorgrid/internal/nn"
	"github.com/specialistvlad/tensorgrid/internal/tensor"
)

// LayerSummary is one row of a model summary.
type LayerSummary struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	OutputShape string   `json:"output_shape"`
	ParamCount  int      `json:"param_count"`
	Inbound     []string `json:"inbound,omitempty"`
}

// Summary describes a compiled model layer by layer.
type Summary struct {
	Layers             []LayerSummary `json:"layers"`
	TotalParams        int            `json:"total_params"`
	TrainableParams    int            `json:"trainable_params"`
	NonTrainableParams int            `json:"non_trainable_params"`
}

// Summarize builds the summary of m. All parameters are trainable.
func Summarize(m *nn.Model) Summary {
	var s Summary
	for _, l := range m.Layers() {
		count := nn.CountParams(l.Params())
		s.Layers = append(s.Layers, LayerSummary{
			Name:        l.Name(),
			Type:        l.ClassName(),
			OutputShape: tensor.ShapeString(m.OutputShape(l.Name())),
			ParamCount:  count,
			Inbound:     m.Inbound(l.Name()),
		})
		s.TotalParams += count
	}
	s.TrainableParams = s.TotalParams
	return s
}

// String renders the summary as a text table.
func (s Summary) String() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Layer (type)\tOutput Shape\tParam #\tConnected to")
	for _, l := range s.Layers {
		fmt.Fprintf(w, "%s (%s)\t%s\t%d\t%s\n", l.Name, l.Type, l.OutputShape, l.ParamCount, strings.Join(l.Inbound, ", "))
	}
	w.Flush()
	fmt.Fprintf(&b, "Total params: %d\nTrainable params: %d\nNon-trainable params: %d\n",
		s.TotalParams, s.TrainableParams, s.NonTrainableParams)
	return b.String()
}

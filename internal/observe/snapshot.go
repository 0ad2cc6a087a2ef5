package observe

import (
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const namePrefix = "fmq_"

// Sample 一条计数器取值
type Sample struct {
	Name   string
	Labels string // k=v,k=v
	Value  float64
}

// Snapshot 读取当前进程内全部 fmq_ 计数器，按名称和标签排序，零值跳过
func Snapshot() ([]Sample, error) {
	return snapshot(prometheus.DefaultGatherer)
}

func snapshot(g prometheus.Gatherer) ([]Sample, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}
	var out []Sample
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), namePrefix) {
			continue
		}
		for _, m := range mf.GetMetric() {
			v := m.GetCounter().GetValue()
			if v == 0 {
				continue
			}
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			out = append(out, Sample{Name: mf.GetName(), Labels: strings.Join(labels, ","), Value: v})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Labels < out[j].Labels
	})
	return out, nil
}

// Copyright 2024 syzkaller project authors. All rights reserved.
// Copyright 2026 sbfcov project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package stat

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/VividCortex/gohistogram"
	"github.com/prometheus/client_golang/prometheus"
)

// This file provides simple counters for instrumenting a single coverage run.
// Every Set owns a Prometheus registry, so the values can be exported in the text
// exposition format (e.g. for node_exporter textfile collector).
//
//	stats := stat.NewSet("sbfcov")
//	statTraces := stats.New("traces", "Number of processed trace files")
//	statTraces.Add(1)

// Distribution turns a value into a histogram; Val then returns the mean.
type Distribution struct{}

type Set struct {
	namespace string
	reg       *prometheus.Registry
	mu        sync.Mutex
	vals      map[string]*Val
	nextOrder atomic.Uint64
}

func NewSet(namespace string) *Set {
	return &Set{
		namespace: namespace,
		reg:       prometheus.NewRegistry(),
		vals:      make(map[string]*Val),
	}
}

type UI struct {
	Name  string
	Desc  string
	Value int
}

func (s *Set) New(name, desc string, opts ...any) *Val {
	v := &Val{
		name:  name,
		desc:  desc,
		order: s.nextOrder.Add(1),
	}
	for _, o := range opts {
		switch o.(type) {
		case Distribution:
			v.hist = true
		default:
			panic(fmt.Sprintf("unknown stats option %#v", o))
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vals[name] != nil {
		panic(fmt.Sprintf("duplicate stat %v", name))
	}
	s.vals[name] = v
	if v.hist {
		s.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: s.namespace,
			Name:      name + "_mean",
			Help:      desc,
		}, func() float64 { return v.mean() }))
	} else {
		s.reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: s.namespace,
			Name:      name + "_total",
			Help:      desc,
		}, func() float64 { return float64(v.Val()) }))
	}
	return v
}

// Collect returns all values in the order of creation.
func (s *Set) Collect() []UI {
	s.mu.Lock()
	defer s.mu.Unlock()
	var vals []*Val
	for _, v := range s.vals {
		vals = append(vals, v)
	}
	sort.Slice(vals, func(i, j int) bool {
		return vals[i].order < vals[j].order
	})
	var res []UI
	for _, v := range vals {
		res = append(res, UI{
			Name:  v.name,
			Desc:  v.desc,
			Value: v.Val(),
		})
	}
	return res
}

// WriteTextfile writes all values in Prometheus text format.
func (s *Set) WriteTextfile(filename string) error {
	return prometheus.WriteToTextfile(filename, s.reg)
}

type Val struct {
	name    string
	desc    string
	order   uint64
	val     atomic.Uint64
	hist    bool
	histMu  sync.Mutex
	histVal *gohistogram.NumericHistogram
}

const histogramBuckets = 255

func (v *Val) Add(val int) {
	if v.hist {
		v.histMu.Lock()
		if v.histVal == nil {
			v.histVal = gohistogram.NewHistogram(histogramBuckets)
		}
		v.histVal.Add(float64(val))
		v.histMu.Unlock()
		return
	}
	v.val.Add(uint64(val))
}

func (v *Val) Val() int {
	if v.hist {
		return int(v.mean())
	}
	return int(v.val.Load())
}

func (v *Val) mean() float64 {
	if !v.hist {
		return float64(v.val.Load())
	}
	v.histMu.Lock()
	defer v.histMu.Unlock()
	if v.histVal == nil {
		return 0
	}
	return v.histVal.Mean()
}

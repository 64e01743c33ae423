/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seatunnel/ka-agent/internal/config"
	"github.com/seatunnel/ka-agent/internal/scanner"
	"github.com/seatunnel/ka-agent/internal/semwait"
	"github.com/seatunnel/ka-agent/internal/shm"
)

// InspectReport is a one-shot view of the register
// InspectReport 是寄存器的一次性视图
type InspectReport struct {
	Name           string               `yaml:"name"`
	Path           string               `yaml:"path"`
	MaxCores       int                  `yaml:"max_cores"`
	SemaphoreValue *uint32              `yaml:"semaphore_value,omitempty"`
	Snapshot       scanner.Snapshot     `yaml:"snapshot"`
	Census         map[string]int       `yaml:"census"`
	Cores          []scanner.CoreRecord `yaml:"cores"`
}

// inspectRegister attaches once, reads the register and detaches again
// inspectRegister 附加一次，读取寄存器后再解除附加
func inspectRegister(cfg *config.Config, all bool) (*InspectReport, error) {
	accessor, err := shm.Attach(cfg.SHM.Name, shm.Options{Dir: cfg.SHM.Dir, Layout: cfg.Layout()})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAttach, err)
	}
	defer func() { _ = accessor.Detach() }()

	reg := accessor.Register()
	snapshot := scanner.Scan(reg)
	snapshot.SampledAt = time.Now().UTC()

	census := make(map[string]int)
	for state, n := range scanner.Census(reg) {
		census[state.String()] = n
	}

	report := &InspectReport{
		Name:     accessor.Name(),
		Path:     accessor.Path(),
		MaxCores: reg.NumCores(),
		Snapshot: snapshot,
		Census:   census,
		Cores:    scanner.Cores(reg, all),
	}
	if sem, err := semwait.NewFutexSemaphore(reg.DeathSemaphore()); err == nil {
		v := sem.Value()
		report.SemaphoreValue = &v
	}
	return report, nil
}

// writeYAML renders the report as YAML
// writeYAML 以 YAML 格式输出报告
func (r *InspectReport) writeYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

// writeText renders the report as an aligned table
// writeText 以对齐表格形式输出报告
func (r *InspectReport) writeText(w io.Writer) error {
	fmt.Fprintf(w, "SHM:         %s (%s)\n", r.Name, r.Path)
	fmt.Fprintf(w, "Max cores:   %d\n", r.MaxCores)
	if r.SemaphoreValue != nil {
		fmt.Fprintf(w, "Semaphore:   %d\n", *r.SemaphoreValue)
	}
	fmt.Fprintf(w, "Most recent: %d\n", r.Snapshot.MostRecentTimestamp)
	if r.Snapshot.DeadCount() > 0 {
		fmt.Fprintf(w, "Dead cores:  %d (%s)\n", r.Snapshot.DeadCount(), scanner.FormatIndices(r.Snapshot.DeadCores))
	} else {
		fmt.Fprintln(w, "Dead cores:  0")
	}

	names := make([]string, 0, len(r.Census))
	for name := range r.Census {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-9s %d\n", name, r.Census[name])
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CORE\tSTATE\tLAST SEEN")
	for _, c := range r.Cores {
		fmt.Fprintf(tw, "%d\t%s\t%d\n", c.Index, c.StateName, c.Timestamp)
	}
	return tw.Flush()
}

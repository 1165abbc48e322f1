// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/reactivestore/store"
	"github.com/AleutianAI/reactivestore/store/configsrc"
)

var watchScriptPath string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Replay a mutation script step by step, showing each settled flush",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchScriptPath, "script", "", "path to a YAML mutation script")
	_ = watchCmd.MarkFlagRequired("script")
}

// flushEvent is one settled step: the properties written and the state
// they produced, timestamped for the plain-text fallback renderer.
type flushEvent struct {
	step    int
	applied map[string]any
	state   map[string]any
	at      time.Time
}

// watchClient is a store.Client that stamps a flushEvent onto a channel
// every time the pipeline cascades to it, letting the watch command
// observe settled state without polling.
type watchClient struct {
	s     *store.Store
	cfg   store.Config
	step  int
	sink  chan<- flushEvent
	label map[string]any
}

func (c *watchClient) FlushProperties(fromAbove bool) {
	c.sink <- flushEvent{
		step:    c.step,
		applied: c.label,
		state:   snapshot(c.s, c.cfg),
		at:      time.Now(),
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	if schemaPath == "" {
		return fmt.Errorf("storectl watch: --schema is required")
	}

	cfg, err := configsrc.Load(schemaPath)
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(watchScriptPath)
	if err != nil {
		return fmt.Errorf("storectl watch: reading script: %w", err)
	}
	var script Script
	if err := yaml.Unmarshal(raw, &script); err != nil {
		return fmt.Errorf("storectl watch: parsing script: %w", err)
	}

	s, err := store.New(cfg)
	if err != nil {
		return fmt.Errorf("storectl watch: building store: %w", err)
	}

	events := make(chan flushEvent, len(script.Steps)+1)
	client := &watchClient{s: s, cfg: cfg, sink: events}
	s.AddClient(client)
	s.Ready()

	go func() {
		defer close(events)
		for i, step := range script.Steps {
			client.step = i + 1
			client.label = step
			s.SetProperties(step)
			if err := s.DrainAsync(); err != nil {
				fmt.Fprintf(os.Stderr, "storectl watch: step %d: %v\n", i+1, err)
			}
			time.Sleep(150 * time.Millisecond)
		}
	}()

	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return watchPlain(events)
	}
	return watchTUI(events)
}

func watchPlain(events <-chan flushEvent) error {
	for ev := range events {
		fmt.Printf("[step %d @ %s] applied=%v\n", ev.step, ev.at.Format(time.RFC3339Nano), ev.applied)
		for _, k := range sortedKeys(ev.state) {
			fmt.Printf("    %s = %v\n", k, ev.state[k])
		}
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type watchModel struct {
	events <-chan flushEvent
	latest flushEvent
	seen   int
	done   bool

	viewport viewport.Model
	ready    bool
}

func watchTUI(events <-chan flushEvent) error {
	p := tea.NewProgram(watchModel{events: events})
	_, err := p.Run()
	return err
}

func waitForEvent(events <-chan flushEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return watchDoneMsg{}
		}
		return ev
	}
}

type watchDoneMsg struct{}

func (m watchModel) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		headerHeight := 2
		footerHeight := 2
		viewportHeight := msg.Height - headerHeight - footerHeight
		if !m.ready {
			m.viewport = viewport.New(msg.Width, viewportHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = viewportHeight
		}
		m.viewport.SetContent(m.stateBody())
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "j", "down":
			m.viewport.LineDown(1)
		case "k", "up":
			m.viewport.LineUp(1)
		}
	case flushEvent:
		m.latest = msg
		m.seen++
		if m.ready {
			m.viewport.SetContent(m.stateBody())
		}
		return m, waitForEvent(m.events)
	case watchDoneMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

// stateBody renders the latest flush's properties as sorted key/value
// lines, the content the viewport scrolls through when a state has more
// properties than fit on screen.
func (m watchModel) stateBody() string {
	var body string
	for _, k := range sortedKeys(m.latest.state) {
		body += keyStyle.Render(k) + " = " + fmt.Sprintf("%v", m.latest.state[k]) + "\n"
	}
	return body
}

func (m watchModel) View() string {
	if m.seen == 0 {
		return "waiting for first flush...\n"
	}

	title := fmt.Sprintf("flush #%d", m.latest.step)
	if m.done {
		title += " (final)"
	}

	view := headerStyle.Render(title) + "\n"
	if m.ready {
		view += m.viewport.View() + "\n"
	} else {
		view += m.stateBody()
	}
	view += dimStyle.Render("press q to quit") + "\n"
	return view
}

// Package tui is a terminal front-end for the demo stores.
//
// The model subscribes to a demo's whole-state stream and re-renders on every
// emission. Key presses become store dispatches; bubbletea calls Update on
// its own goroutine, so sends are auto-threaded onto the store's main loop.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/seonyeopkim/asyncaction/internal/demo"
	"github.com/seonyeopkim/asyncaction/store"
)

type stateMsg struct{ state any }

type streamClosedMsg struct{}

type dispatchErrMsg struct{ err error }

// Model is the bubbletea model for a demo program.
type Model struct {
	program  demo.Program
	states   <-chan any
	bindings map[string]Binding
	order    []Binding
	dispatch []store.DispatchOption

	state    any
	renders  int
	lastKey  string
	err      error
	quitting bool
}

// New creates a model for program. States are read from the program's
// stream until ctx is done.
func New(ctx context.Context, program demo.Program, opts ...store.DispatchOption) Model {
	order := BindingsFor(program.Name())
	bindings := make(map[string]Binding, len(order))
	for _, b := range order {
		bindings[b.Key] = b
	}

	if len(opts) == 0 {
		opts = []store.DispatchOption{store.WithAutoThreading()}
	}

	return Model{
		program:  program,
		states:   program.States().Chan(ctx),
		bindings: bindings,
		order:    order,
		dispatch: opts,
		state:    program.State(),
	}
}

// Init starts listening for state emissions.
func (m Model) Init() tea.Cmd {
	return m.waitForState()
}

func (m Model) waitForState() tea.Cmd {
	return func() tea.Msg {
		state, ok := <-m.states
		if !ok {
			return streamClosedMsg{}
		}
		return stateMsg{state: state}
	}
}

// Update handles key presses and state emissions.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		b, ok := m.bindings[key]
		if !ok {
			return m, nil
		}
		m.lastKey = key
		return m, m.send(b)

	case stateMsg:
		m.state = msg.state
		m.renders++
		m.err = nil
		return m, m.waitForState()

	case streamClosedMsg:
		return m, tea.Quit

	case dispatchErrMsg:
		m.err = msg.err
	}
	return m, nil
}

func (m Model) send(b Binding) tea.Cmd {
	var err error
	if b.Async {
		err = m.program.Run(b.Action, nil, m.dispatch...)
	} else {
		err = m.program.Send(b.Action, nil, m.dispatch...)
	}
	if err != nil {
		return func() tea.Msg { return dispatchErrMsg{err: err} }
	}
	return nil
}

// State returns the last rendered state.
func (m Model) State() any { return m.state }

// View renders the current state and the key help.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("asyncaction · %s", m.program.Name())))
	b.WriteString("\n")
	b.WriteString(stateStyle.Render(renderState(m.state)))
	b.WriteString("\n")

	if n := inFlight(m.program); n > 0 {
		b.WriteString(busyStyle.Render(fmt.Sprintf("%d task(s) in flight", n)))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}

	help := make([]string, 0, len(m.order)+1)
	for _, kb := range m.order {
		help = append(help, keyStyle.Render(kb.Key)+" "+helpStyle.Render(kb.Label))
	}
	help = append(help, keyStyle.Render("q")+" "+helpStyle.Render("quit"))
	b.WriteString(strings.Join(help, helpStyle.Render(" · ")))
	b.WriteString("\n")
	return b.String()
}

type inFlighter interface{ InFlight() int }

func inFlight(p demo.Program) int {
	if s, ok := p.Store().(inFlighter); ok {
		return s.InFlight()
	}
	return 0
}

// renderState prints the state's JSON fields one per line in key order.
func renderState(state any) string {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Sprintf("%v", state)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return string(raw)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		v := fields[k]
		if v == nil {
			v = "nil"
		}
		lines = append(lines, fmt.Sprintf("%s: %v", k, v))
	}
	return strings.Join(lines, "\n")
}

package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/wippyai/autopilot-bridge/abi"
	"github.com/wippyai/autopilot-bridge/autopilot"
)

type paramInfo struct {
	name        string
	placeholder string
}

// operation is one entry of the picker. run receives the raw input values
// in params order.
type operation struct {
	run    func(ctx context.Context, s *autopilot.Session, vals []string) (string, error)
	name   string
	sig    string
	params []paramInfo
}

func operations() []operation {
	sigOf := func(desc string) string {
		sig, err := abi.LowerDescriptor(desc)
		if err != nil {
			return desc
		}
		return sig.WitString()
	}
	dims := []paramInfo{{"wavelengths", "s32"}, {"planes", "s32"}}
	focusParams := []paramInfo{{"width", "s32"}, {"height", "s32"}, {"psf", "f64"}, {"fill", "s16"}}

	return []operation{
		{
			name:   "setLoggingOptions",
			sig:    sigOf(autopilot.DescSetLoggingOptions),
			params: []paramInfo{{"stdout", "bool"}, {"file", "bool"}},
			run: func(ctx context.Context, s *autopilot.Session, v []string) (string, error) {
				a := newArgs(v)
				stdout, file := a.bool(0), a.bool(1)
				if a.err != nil {
					return "", a.err
				}
				return "ok", s.SetLoggingOptions(ctx, stdout, file)
			},
		},
		{
			name:   "dcts16bit",
			sig:    sigOf(autopilot.DescFocusMeasure),
			params: focusParams,
			run: func(ctx context.Context, s *autopilot.Session, v []string) (string, error) {
				w, h, psf, samples, err := focusArgs(v)
				if err != nil {
					return "", err
				}
				m, err := s.DCTS16(ctx, samples, w, h, psf)
				return strconv.FormatFloat(m, 'g', -1, 64), err
			},
		},
		{
			name:   "tenengrad16bit",
			sig:    sigOf(autopilot.DescFocusMeasure),
			params: focusParams,
			run: func(ctx context.Context, s *autopilot.Session, v []string) (string, error) {
				w, h, psf, samples, err := focusArgs(v)
				if err != nil {
					return "", err
				}
				m, err := s.Tenengrad16(ctx, samples, w, h, psf)
				return strconv.FormatFloat(m, 'g', -1, 64), err
			},
		},
		{
			name:   "l2solve (single anchor)",
			sig:    sigOf(autopilot.DescL2SolveSingle),
			params: append(dims, paramInfo{"sync plane", "s32"}),
			run: func(ctx context.Context, s *autopilot.Session, v []string) (string, error) {
				a := newArgs(v)
				job := &solveJob{Kind: "ssp", Wavelengths: a.int32(0), Planes: a.int32(1), SyncPlane: a.int32(2)}
				if a.err != nil {
					return "", a.err
				}
				return runJob(ctx, s, job)
			},
		},
		{
			name:   "l2solve (multi anchor)",
			sig:    sigOf(autopilot.DescL2SolveMulti),
			params: dims,
			run: func(ctx context.Context, s *autopilot.Session, v []string) (string, error) {
				a := newArgs(v)
				job := &solveJob{Kind: "multi", Wavelengths: a.int32(0), Planes: a.int32(1)}
				if a.err != nil {
					return "", a.err
				}
				return runJob(ctx, s, job)
			},
		},
		{
			name:   "qpsolve",
			sig:    sigOf(autopilot.DescQPSolve),
			params: dims,
			run: func(ctx context.Context, s *autopilot.Session, v []string) (string, error) {
				a := newArgs(v)
				job := &solveJob{Kind: "qp", Wavelengths: a.int32(0), Planes: a.int32(1)}
				if a.err != nil {
					return "", a.err
				}
				return runJob(ctx, s, job)
			},
		},
		{
			name: "getLastExceptionMessage",
			sig:  sigOf(autopilot.DescGetLastExceptionMessage),
			run: func(ctx context.Context, s *autopilot.Session, _ []string) (string, error) {
				msg, ok, err := s.LastException(ctx)
				if !ok && err == nil {
					return "no exception pending", nil
				}
				return msg, err
			},
		},
	}
}

// args parses picker input fields, keeping the first error.
type args struct {
	err  error
	vals []string
}

func newArgs(vals []string) *args { return &args{vals: vals} }

func (a *args) field(i int) string {
	if i < len(a.vals) {
		return strings.TrimSpace(a.vals[i])
	}
	return ""
}

func (a *args) fail(i int, kind string, err error) {
	if a.err == nil {
		a.err = fmt.Errorf("field %d: %q is not a valid %s: %w", i+1, a.field(i), kind, err)
	}
}

func (a *args) int32(i int) int32 {
	v, err := strconv.ParseInt(a.field(i), 10, 32)
	if err != nil {
		a.fail(i, "s32", err)
	}
	return int32(v)
}

func (a *args) int16(i int) int16 {
	v, err := strconv.ParseInt(a.field(i), 10, 16)
	if err != nil {
		a.fail(i, "s16", err)
	}
	return int16(v)
}

func (a *args) float64(i int) float64 {
	v, err := strconv.ParseFloat(a.field(i), 64)
	if err != nil {
		a.fail(i, "f64", err)
	}
	return v
}

func (a *args) bool(i int) bool {
	v, err := strconv.ParseBool(a.field(i))
	if err != nil {
		a.fail(i, "bool", err)
	}
	return v
}

func focusArgs(v []string) (w, h int32, psf float64, samples []int16, err error) {
	a := newArgs(v)
	w, h, psf = a.int32(0), a.int32(1), a.float64(2)
	fill := a.int16(3)
	if a.err != nil {
		return 0, 0, 0, nil, a.err
	}
	if n := int(w) * int(h); n > 0 {
		samples = make([]int16, n)
		for i := range samples {
			samples[i] = fill
		}
	}
	return w, h, psf, samples, nil
}

func runJob(ctx context.Context, s *autopilot.Session, job *solveJob) (string, error) {
	req := job.request()
	newState := make([]float64, len(req.OldState))

	var (
		status int32
		err    error
	)
	switch job.Kind {
	case "ssp":
		status, err = s.L2SolveSingle(ctx, req, newState)
	case "multi":
		status, err = s.L2SolveMulti(ctx, req, newState)
	case "qp":
		status, err = s.QPSolve(ctx, req, newState)
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("status %d, %d state values", status, len(newState)), nil
}

type interactiveModel struct {
	err      error
	open     func(context.Context) (*autopilot.Session, error)
	session  *autopilot.Session
	result   string
	ops      []operation
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

type modelState int

const (
	stateSelectOp modelState = iota
	stateInputArgs
	stateShowResult
)

func newInteractiveModel(open func(context.Context) (*autopilot.Session, error)) *interactiveModel {
	return &interactiveModel{
		open:  open,
		state: stateSelectOp,
	}
}

type loadedMsg struct {
	err     error
	session *autopilot.Session
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.startSession
}

func (m *interactiveModel) startSession() tea.Msg {
	s, err := m.open(context.Background())
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{session: s}
}

func (m *interactiveModel) close() {
	if m.session != nil {
		_ = m.session.Close(context.Background())
		m.session = nil
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state != stateInputArgs || msg.String() == "ctrl+c" {
				m.close()
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectOp && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectOp && m.selected < len(m.ops)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectOp:
				if len(m.ops) == 0 {
					return m, nil
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callOperation
				}
				m.state = stateInputArgs
				return m, nil

			case stateInputArgs:
				return m, m.callOperation

			case stateShowResult:
				m.state = stateSelectOp
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectOp
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectOp
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.session = msg.session
		m.ops = operations()

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) prepareInputs() {
	op := m.ops[m.selected]
	m.inputs = make([]textinput.Model, len(op.params))
	for i, p := range op.params {
		ti := textinput.New()
		ti.Placeholder = p.placeholder
		ti.Prompt = p.name + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callOperation() tea.Msg {
	if m.session == nil {
		return callResultMsg{err: fmt.Errorf("session not started")}
	}

	op := m.ops[m.selected]
	vals := make([]string, len(op.params))
	for i := range vals {
		if i < len(m.inputs) {
			vals[i] = m.inputs[i].Value()
		}
	}

	ctx := context.Background()
	result, err := op.run(ctx, m.session, vals)
	if err != nil {
		if msg, ok, _ := m.session.LastException(ctx); ok {
			err = fmt.Errorf("%w\n%s", err, msg)
		}
		return callResultMsg{err: err}
	}
	return callResultMsg{result: result}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.session == nil {
		return "Starting runtime..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("AutoPilot"))
	b.WriteString(" ")
	b.WriteString(m.session.ID())
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectOp:
		b.WriteString("Select an operation:\n\n")
		for i, op := range m.ops {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + op.name))
				b.WriteString(" " + typeStyle.Render(op.sig))
			} else {
				b.WriteString("  " + funcStyle.Render(op.name) + " " + typeStyle.Render(op.sig))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		op := m.ops[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(op.name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(op.params[i].placeholder))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		op := m.ops[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(op.name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func newInteractiveCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"i"},
		Short:   "Pick and call operations in a terminal UI",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := newInteractiveModel(g.open)
			_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
			m.close()
			return err
		},
	}
}

// Package tuilive implements the --watch live dashboard: a bubbletea
// program that re-runs a suite whenever a watched file changes and renders
// a running pass/fail tally, styled the same way the teacher's pkg/tui does.
package tuilive

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"

	"github.com/restyrun/resty/internal/result"
	"github.com/restyrun/resty/internal/suite"
)

var (
	primaryColor = lipgloss.Color("#FF6B9D")
	accentColor  = lipgloss.Color("#89DDFF")
	mutedColor   = lipgloss.Color("#6C7086")
	passColor    = lipgloss.Color("#A6E3A1")
	failColor    = lipgloss.Color("#F38BA8")

	titleStyle = lipgloss.NewStyle().Foreground(primaryColor).Bold(true).Padding(1, 2)
	fileStyle  = lipgloss.NewStyle().Foreground(accentColor)
	passStyle  = lipgloss.NewStyle().Foreground(passColor)
	failStyle  = lipgloss.NewStyle().Foreground(failColor)
	helpStyle  = lipgloss.NewStyle().Foreground(mutedColor).Padding(1, 2)
)

// Runner executes the suite for a single discovered file, matching the
// signature cmd/resty's suite.Run already has.
type Runner func(ctx context.Context, path string) result.FileSuite

type rerunMsg struct{}

type resultsMsg struct {
	summary result.Summary
	run     int
}

type model struct {
	files   []string
	run     Runner
	summary result.Summary
	runNum  int
	width   int
}

// Run starts the live dashboard, watching files for changes and re-running
// the suite on every change until the user quits.
func Run(files []string, run Runner) error {
	events, err := watch(files)
	if err != nil {
		return err
	}
	m := model{files: files, run: run}
	p := tea.NewProgram(m, tea.WithAltScreen())
	go func() {
		for range events {
			p.Send(rerunMsg{})
		}
	}()
	_, err = p.Run()
	return err
}

// watch follows the directories containing each file with fsnotify,
// collapsing bursts of events (editors often emit several per save) into a
// single debounced signal.
func watch(files []string) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}
	dirs := map[string]struct{}{}
	for _, f := range files {
		dirs[dirOf(f)] = struct{}{}
	}
	for d := range dirs {
		if err := w.Add(d); err != nil {
			return nil, fmt.Errorf("failed to watch %s: %w", d, err)
		}
	}

	out := make(chan struct{}, 1)
	go func() {
		var debounce <-chan time.Time
		for {
			select {
			case _, ok := <-w.Events:
				if !ok {
					close(out)
					return
				}
				debounce = time.After(150 * time.Millisecond)
			case <-debounce:
				select {
				case out <- struct{}{}:
				default:
				}
			case _, ok := <-w.Errors:
				if !ok {
					close(out)
					return
				}
			}
		}
	}()
	return out, nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tea.EnterAltScreen, m.runAll())
}

func (m model) runAll() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		s := result.Summary{}
		for _, f := range m.files {
			s.Files = append(s.Files, m.run(ctx, f))
		}
		return resultsMsg{summary: s, run: m.runNum + 1}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			return m, m.runAll()
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case rerunMsg:
		return m, m.runAll()
	case resultsMsg:
		m.summary = msg.summary
		m.runNum = msg.run
	}
	return m, nil
}

func (m model) View() string {
	header := titleStyle.Render("resty --watch") +
		helpStyle.Render(fmt.Sprintf("run #%d • q to quit • r to re-run now", m.runNum))

	totals := m.summary.Totals()
	body := fmt.Sprintf(
		"%s  %s  %s\n",
		passStyle.Render(fmt.Sprintf("passed %d", totals.Passed)),
		failStyle.Render(fmt.Sprintf("failed %d", totals.Failed)),
		helpStyle.Render(fmt.Sprintf("skipped %d", totals.Skipped)),
	)

	for _, fs := range m.summary.Files {
		body += "\n" + fileStyle.Render(fs.Path)
		for _, r := range fs.Results {
			style := passStyle
			if r.Status == result.Failed {
				style = failStyle
			}
			body += "\n  " + style.Render(fmt.Sprintf("%s %s", string(r.Status), r.Name))
		}
	}

	return header + "\n\n" + body + "\n"
}

// Package tui is the terminal front end: one tab per record kind, role-gated
// actions that open form dialogs, and a one-shot message dialog for every
// mutation result.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/sirupsen/logrus"

	"github.com/jask/demandboard/internal/api"
	"github.com/jask/demandboard/internal/form"
	"github.com/jask/demandboard/internal/party"
	"github.com/jask/demandboard/internal/store"
)

// Backend is what the board needs from the API client beyond reads.
type Backend interface {
	form.Mutator
	ProjectByCode(ctx context.Context, code string) (api.Record, error)
}

var _ Backend = (*api.Client)(nil)

type Deps struct {
	Stores    *store.Set
	Backend   Backend
	Refresher form.Refresher
	Log       *logrus.Logger
}

// App is the bubbletea model.
type App struct {
	ctx     context.Context
	deps    Deps
	dir     Directory
	events  chan tea.Msg
	tab     int
	cursor  map[api.Kind]int
	dialog  *formDialog
	message *messageDialog
	status  string
	width   int
	height  int
}

func New(ctx context.Context, deps Deps, dir Directory) *App {
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	return &App{
		ctx:    ctx,
		deps:   deps,
		dir:    dir,
		events: make(chan tea.Msg, 64),
		cursor: map[api.Kind]int{},
	}
}

// messages
type storeUpdatedMsg struct {
	kind api.Kind
	err  error
}

type resultMsg struct {
	variant form.Variant
	result  api.Result
}

type allocationEditMsg struct {
	record api.Record
	budget string
}

// Notify is the refresh scheduler's hook. It runs on the refreshing
// goroutine and never blocks; a dropped notice is covered by the next one.
func (a *App) Notify(kind api.Kind, err error) {
	select {
	case a.events <- storeUpdatedMsg{kind: kind, err: err}:
	default:
	}
}

// ShowResult queues a mutation result for the message dialog.
func (a *App) ShowResult(v form.Variant, r api.Result) {
	select {
	case a.events <- resultMsg{variant: v, result: r}:
	case <-a.ctx.Done():
	}
}

func (a *App) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case m := <-a.events:
			return m
		case <-a.ctx.Done():
			return nil
		}
	}
}

func (a *App) Init() tea.Cmd {
	return a.waitForEvent()
}

func (a *App) kind() api.Kind { return api.Kinds[a.tab] }

func (a *App) records(kind api.Kind) []api.Record {
	if a.deps.Stores == nil {
		return nil
	}
	if s := a.deps.Stores.ByKind(kind); s != nil {
		return s.Records()
	}
	return nil
}

func (a *App) selected() (api.Record, bool) {
	recs := a.records(a.kind())
	i := a.cursor[a.kind()]
	if i < 0 || i >= len(recs) {
		return api.Record{}, false
	}
	return recs[i], true
}

func (a *App) clampCursors() {
	for _, k := range api.Kinds {
		n := len(a.records(k))
		if a.cursor[k] >= n {
			a.cursor[k] = max(n-1, 0)
		}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = m.Width, m.Height
	case storeUpdatedMsg:
		a.clampCursors()
		return a, a.waitForEvent()
	case resultMsg:
		a.message = newMessageDialog(m.variant, m.result)
		a.status = ""
		return a, a.waitForEvent()
	case allocationEditMsg:
		a.openUpdateAllocation(m.record, m.budget)
	case tea.KeyMsg:
		if a.message != nil {
			a.message = nil
			return a, nil
		}
		if a.dialog != nil {
			return a.handleDialogKey(m)
		}
		return a.handleKey(m)
	}
	return a, nil
}

func (a *App) handleDialogKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	d := a.dialog
	outcome, cmd := d.update(m)
	switch outcome {
	case dialogCancelled:
		a.dialog = nil
	case dialogSubmitted:
		a.status = "sending..."
		return a, a.sendCmd(d.sub)
	}
	return a, cmd
}

func (a *App) sendCmd(sub *form.Submission) tea.Cmd {
	return func() tea.Msg {
		sub.Send(a.ctx)
		return nil
	}
}

func (a *App) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		if a.deps.Refresher != nil {
			a.deps.Refresher.RefreshAll(a.ctx)
		}
		return nil
	}
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	a.status = ""
	switch m.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "tab", "right", "l":
		a.tab = (a.tab + 1) % len(api.Kinds)
	case "shift+tab", "left", "h":
		a.tab = (a.tab + len(api.Kinds) - 1) % len(api.Kinds)
	case "1", "2", "3":
		a.tab = int(m.String()[0] - '1')
	case "up", "k":
		if a.cursor[a.kind()] > 0 {
			a.cursor[a.kind()]--
		}
	case "down", "j":
		if a.cursor[a.kind()] < len(a.records(a.kind()))-1 {
			a.cursor[a.kind()]++
		}
	case "r":
		a.status = "refreshing..."
		return a, a.refreshCmd()
	case "n":
		a.openCreateDemand()
	case "u":
		a.openUpdateDemand()
	case "a":
		a.openAllocate()
	case "e":
		return a, a.loadAllocationEdit()
	}
	return a, nil
}

func (a *App) formDeps() form.Deps {
	return form.Deps{
		Mutator:   a.deps.Backend,
		Refresher: a.deps.Refresher,
		Messages:  a,
		Log:       a.deps.Log,
	}
}

func (a *App) open(v form.Variant, in form.Input) {
	s := form.New(v, in, a.formDeps(), func() { a.dialog = nil })
	a.dialog = newFormDialog(s)
}

func (a *App) openCreateDemand() {
	if !a.dir.Me.IsSponsor() {
		a.status = "only a sponsor can create demands"
		return
	}
	a.open(form.CreateDemand, form.Input{Choices: a.dir.PlatformLeads})
}

func (a *App) openUpdateDemand() {
	if !a.dir.Me.IsPlatformLead() {
		a.status = "only a platform lead can update demands"
		return
	}
	rec, ok := a.selectedOf(api.KindDemands)
	if !ok {
		return
	}
	initial := form.Draft{Amount: rec.Field("amount")}
	if initial.Amount == "0" {
		initial.Amount = ""
	}
	initial.StartDate, _ = form.ParseDate(rec.Field("startDate"))
	initial.EndDate, _ = form.ParseDate(rec.Field("endDate"))
	a.open(form.UpdateDemand, form.Input{TargetID: rec.ID(), Prior: rec, Initial: initial})
}

func (a *App) openAllocate() {
	if !a.dir.Me.IsPlatformLead() {
		a.status = "only a platform lead can allocate delivery teams"
		return
	}
	rec, ok := a.selectedOf(api.KindProjects)
	if !ok {
		return
	}
	a.open(form.CreateAllocation, form.Input{
		TargetID: rec.ID(),
		Choices:  a.dir.DeliveryTeams,
		Prior:    rec,
		Budget:   rec.Field("budget"),
	})
}

// loadAllocationEdit fetches the allocation's project so the dialog can
// show the remaining budget. A failed lookup still opens the dialog.
func (a *App) loadAllocationEdit() tea.Cmd {
	if !a.dir.Me.IsPlatformLead() {
		a.status = "only a platform lead can update allocations"
		return nil
	}
	rec, ok := a.selectedOf(api.KindAllocations)
	if !ok {
		return nil
	}
	code := rec.Field("projectCode")
	return func() tea.Msg {
		p, err := a.deps.Backend.ProjectByCode(a.ctx, code)
		if err != nil {
			a.deps.Log.WithError(err).WithField("project", code).Debug("project lookup failed")
			return allocationEditMsg{record: rec}
		}
		return allocationEditMsg{record: rec, budget: p.Field("budget")}
	}
}

func (a *App) openUpdateAllocation(rec api.Record, budget string) {
	if a.dialog != nil || a.message != nil {
		return
	}
	initial := form.Draft{
		Amount:       rec.Field("allocationAmount"),
		DeliveryTeam: rec.Field("deliveryTeam"),
	}
	initial.StartDate, _ = form.ParseDate(rec.Field("startDate"))
	initial.EndDate, _ = form.ParseDate(rec.Field("endDate"))
	a.open(form.UpdateAllocation, form.Input{TargetID: rec.ID(), Prior: rec, Budget: budget, Initial: initial})
}

// selectedOf returns the highlighted record when the active tab shows kind.
func (a *App) selectedOf(kind api.Kind) (api.Record, bool) {
	if a.kind() != kind {
		a.status = fmt.Sprintf("select a record on the %s tab", kind)
		return api.Record{}, false
	}
	rec, ok := a.selected()
	if !ok {
		a.status = fmt.Sprintf("no %s to act on", kind)
	}
	return rec, ok
}

func (a *App) View() string {
	base := a.renderBoard()
	switch {
	case a.message != nil:
		card := cardStyle
		if a.message.failed {
			card = cardFailStyle
		}
		return popup(base, a.message.view(), card, a.width, a.height)
	case a.dialog != nil:
		return popup(base, a.dialog.view(), cardStyle, a.width, a.height)
	}
	return base
}

func (a *App) renderBoard() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("demandboard"))
	b.WriteString("  " + mutedStyle.Render(a.dir.Me.Raw) + "\n")

	tabs := make([]string, len(api.Kinds))
	for i, k := range api.Kinds {
		label := fmt.Sprintf("%d %s (%d)", i+1, k, len(a.records(k)))
		if i == a.tab {
			tabs[i] = activeTab.Render(label)
		} else {
			tabs[i] = tabStyle.Render(label)
		}
	}
	b.WriteString(strings.Join(tabs, " ") + "\n\n")

	kind := a.kind()
	cols := columnsFor(kind)
	b.WriteString(mutedStyle.Render(row(cols, headers(cols))) + "\n")
	recs := a.records(kind)
	if len(recs) == 0 {
		b.WriteString(mutedStyle.Render("  nothing here yet") + "\n")
	}
	for i, r := range recs {
		line := row(cols, cells(cols, r))
		if i == a.cursor[kind] {
			b.WriteString(cursorStyle.Render("▶") + line + "\n")
		} else {
			b.WriteString(" " + line + "\n")
		}
	}

	b.WriteString("\n" + mutedStyle.Render(a.keyHelp()))
	if a.status != "" {
		b.WriteString("\n" + infoStyle.Render(a.status))
	}
	return b.String()
}

func (a *App) keyHelp() string {
	keys := []string{"[tab] Next tab", "[r] Refresh"}
	switch {
	case a.dir.Me.IsSponsor():
		keys = append(keys, "[n] New demand")
	case a.dir.Me.IsPlatformLead():
		switch a.kind() {
		case api.KindDemands:
			keys = append(keys, "[u] Update demand")
		case api.KindProjects:
			keys = append(keys, "[a] Allocate team")
		case api.KindAllocations:
			keys = append(keys, "[e] Edit allocation")
		}
	}
	return strings.Join(append(keys, "[q] Quit"), "  ")
}

type column struct {
	title string
	width int
	value func(api.Record) string
}

func fieldOf(name string) func(api.Record) string {
	return func(r api.Record) string { return r.Field(name) }
}

func orgOf(name string) func(api.Record) string {
	return func(r api.Record) string { return org(r.Field(name)) }
}

func org(name string) string {
	if o := party.Parse(name).Organisation(); o != "" {
		return o
	}
	return name
}

func columnsFor(kind api.Kind) []column {
	switch kind {
	case api.KindProjects:
		return []column{
			{"Code", 7, fieldOf("projectCode")},
			{"Description", 28, fieldOf("description")},
			{"Budget", 10, fieldOf("budget")},
			{"Start", 10, fieldOf("startDate")},
			{"End", 10, fieldOf("endDate")},
			{"Teams", 20, func(r api.Record) string {
				teams := r.List("deliveryTeams")
				for i := range teams {
					teams[i] = org(teams[i])
				}
				return strings.Join(teams, ",")
			}},
		}
	case api.KindAllocations:
		return []column{
			{"Project", 7, fieldOf("projectCode")},
			{"Description", 28, fieldOf("description")},
			{"Team", 10, orgOf("deliveryTeam")},
			{"Amount", 10, fieldOf("allocationAmount")},
			{"Start", 10, fieldOf("startDate")},
			{"End", 10, fieldOf("endDate")},
		}
	default:
		return []column{
			{"Description", 28, fieldOf("description")},
			{"Amount", 10, fieldOf("amount")},
			{"Start", 10, fieldOf("startDate")},
			{"End", 10, fieldOf("endDate")},
			{"Sponsor", 10, orgOf("sponsor")},
			{"Lead", 10, orgOf("platformLead")},
		}
	}
}

func headers(cols []column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.title
	}
	return out
}

func cells(cols []column, r api.Record) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.value(r)
	}
	return out
}

func row(cols []column, vals []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = padTo(ansi.Truncate(vals[i], c.width, "…"), c.width)
	}
	return " " + strings.Join(parts, "  ")
}

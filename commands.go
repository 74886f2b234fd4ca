package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"club-client/internal/api"
	"club-client/internal/apiclient"
	"club-client/internal/utils"
	"club-client/internal/validators"
)

var errUsage = errors.New("invalid usage")

// run 分发命令
func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		return a.login(ctx)
	case "logout":
		return a.logout(ctx)
	case "whoami":
		return a.whoami(ctx)
	case "clubs":
		return a.listClubs(ctx)
	case "select":
		return a.selectClub(args)
	case "seasons":
		return a.listSeasons(ctx, args)
	case "rankings":
		return a.listRankings(ctx, args)
	case "history":
		return a.history(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

func (a *app) login(ctx context.Context) error {
	form := validators.LoginForm{Email: *email, Password: *password}
	if err := validators.Struct(form); err != nil {
		return err
	}

	result, err := a.auth.Login(ctx, form.Email, form.Password)
	if err != nil {
		return err
	}

	// 登录后按路由守卫确定落地页，资料不完整会被引导到补全页
	loc, err := a.router.Push(ctx, "/")
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✅ %s (%s)\n", result.Message, result.User.Email)
	fmt.Fprintf(a.out, "→ %s\n", loc.FullPath)
	return nil
}

func (a *app) logout(ctx context.Context) error {
	a.auth.Logout(ctx)
	fmt.Fprintln(a.out, "👋 signed out")
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	user, err := a.auth.LoadUser(ctx, false)
	if err != nil {
		return a.sessionError(err)
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%d\n", user.ID)
	fmt.Fprintf(w, "Email\t%s\n", user.Email)
	fmt.Fprintf(w, "Name\t%s\n", user.Name)
	if user.Role != "" {
		fmt.Fprintf(w, "Role\t%s\n", utils.Label(utils.MemberRole, user.Role))
	}
	if user.Gender != nil {
		fmt.Fprintf(w, "Gender\t%s\n", utils.Label(utils.Gender, *user.Gender))
	}
	if user.BirthDate != nil {
		fmt.Fprintf(w, "Birth date\t%s\n", *user.BirthDate)
	}
	fmt.Fprintf(w, "Profile complete\t%t\n", a.auth.IsProfileComplete())
	fmt.Fprintf(w, "Joined\t%s\n", utils.FromNow(user.CreatedAt, time.Now()))
	return w.Flush()
}

func (a *app) listClubs(ctx context.Context) error {
	clubs, err := a.clubs.Fetch(ctx, api.ListParams{})
	if err != nil {
		return a.sessionError(err)
	}
	if len(clubs) == 0 {
		fmt.Fprintln(a.out, "no clubs")
		return nil
	}

	selected := a.clubs.SelectedID()
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\tID\tNAME\tLOCATION\tCREATED")
	for _, c := range clubs {
		marker := ""
		if c.ID == selected {
			marker = "*"
		}
		location := "-"
		if c.Location != nil {
			location = *c.Location
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", marker, c.ID, c.Name, location, a.dates.Date(c.CreatedAt))
	}
	return w.Flush()
}

func (a *app) selectClub(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: select <club>", errUsage)
	}
	id, err := strconv.Atoi(args[0])
	if err != nil || id <= 0 {
		return fmt.Errorf("%w: club id must be a positive integer", errUsage)
	}
	if err := a.clubs.Select(id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "selected club %d\n", id)
	return nil
}

func (a *app) listSeasons(ctx context.Context, args []string) error {
	clubID, err := a.clubArg(args)
	if err != nil {
		return err
	}
	seasons, err := a.services.Seasons.List(ctx, clubID, "")
	if err != nil {
		return a.sessionError(err)
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tPERIOD")
	for _, s := range seasons {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s ~ %s\n", s.ID, s.Name,
			utils.Label(utils.SeasonStatus, s.Status), s.StartDate, s.EndDate)
	}
	return w.Flush()
}

func (a *app) listRankings(ctx context.Context, args []string) error {
	clubID, err := a.clubArg(args)
	if err != nil {
		return err
	}
	rankings, err := a.services.Rankings.List(ctx, clubID, api.RankingQuery{SortBy: "points"})
	if err != nil {
		return a.sessionError(err)
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tMEMBER\tW-D-L\tPOINTS\tWIN RATE")
	for i, r := range rankings {
		rank := i + 1
		fmt.Fprintf(w, "%s\t%s\t%d-%d-%d\t%d\t%d%%\n", utils.FormatRank(&rank), r.MemberName,
			r.Wins, r.Draws, r.Losses, r.Points, utils.WinRate(r.Wins, r.TotalMatches))
	}
	return w.Flush()
}

func (a *app) history(ctx context.Context) error {
	if !a.journal.Enabled() {
		fmt.Fprintln(a.out, "request tracking is disabled (tracking.enabled: false)")
		return nil
	}

	requests, err := a.journal.RecentRequests(ctx, 20)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tMETHOD\tPATH\tSTATUS\tRETRIED\tDURATION")
	for _, r := range requests {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\t%s\n", a.dates.DateTime(r.CreatedAt), r.Method, r.Path,
			r.StatusCode, r.Retried, utils.FormatResponseTime(r.Duration))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	refreshes, err := a.journal.RecentRefreshes(ctx, 10)
	if err != nil {
		return err
	}
	if len(refreshes) == 0 {
		return nil
	}
	fmt.Fprintln(a.out)
	w = tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tWAVE\tSUCCESS\tWAITERS\tDURATION")
	for _, r := range refreshes {
		fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%s\n", a.dates.DateTime(r.CreatedAt), r.WaveID,
			r.Success, r.Waiters, utils.FormatResponseTime(r.Duration))
	}
	return w.Flush()
}

// clubArg 未指定俱乐部时使用已选择的俱乐部
func (a *app) clubArg(args []string) (int, error) {
	if len(args) > 0 {
		id, err := strconv.Atoi(args[0])
		if err != nil || id <= 0 {
			return 0, fmt.Errorf("%w: club id must be a positive integer", errUsage)
		}
		return id, nil
	}
	if id := a.clubs.SelectedID(); id > 0 {
		return id, nil
	}
	return 0, fmt.Errorf("%w: no club given and none selected", errUsage)
}

// sessionError 会话失效时提示重新登录
func (a *app) sessionError(err error) error {
	if errors.Is(err, apiclient.ErrNotAuthenticated) {
		return fmt.Errorf("session expired, run `login` again (now at %s): %w", a.router.CurrentPath(), err)
	}
	return err
}

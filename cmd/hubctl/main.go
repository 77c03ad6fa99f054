package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/civicpulse/hub/internal/api/dto"
	"github.com/civicpulse/hub/internal/client"
	"github.com/civicpulse/hub/internal/config"
	"github.com/civicpulse/hub/internal/domain"
)

const usage = `usage: hubctl <command> [flags] [args]

session:
  signup -first F -last L -email E -password P
  login EMAIL PASSWORD
  admin-login EMAIL PASSWORD
  dept-login -dept NAME -email E -password P
  logout
  whoami
  open PATH
  image KEY [-o FILE]
  complaint-workers ID

citizen:
  raise -title T -category C -description D -location L -city C [-image FILE]
  history [-filter ALL|Open|PENDING|IN_PROGRESS|RESOLVED]
  feedback ID RATING [MESSAGE]

admin:
  complaints [-filter F]
  assign ID DEPT_ID DAYS
  reassign ID DEPT_ID DAYS
  message ID TEXT
  counts
  audit ID

department:
  board [-filter F]
  workers
  add-worker -name N -email E -phone P
  complete ID -workers 1,2 -image FILE [-message TEXT]
  dept-message ID TEXT
`

type app struct {
	gw     *client.Gateway
	out    io.Writer
	errOut io.Writer
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.LoadClient()
	sessions := client.NewSessions(client.NewFileStore(cfg.SessionFile))
	gw := client.NewGateway(cfg.BaseURL, nil, sessions, time.Duration(cfg.TimeoutSeconds)*time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{gw: gw, out: os.Stdout, errOut: os.Stderr}
	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "hubctl:", describe(err))
		if client.IsUnauthorized(err) {
			fmt.Fprintln(os.Stderr, "log in again via", client.LoginPathFor(sessions.CurrentRole()))
		}
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "signup":
		return a.signup(ctx, args)
	case "login":
		return a.login(ctx, args, a.gw.LoginUser)
	case "admin-login":
		return a.login(ctx, args, a.gw.LoginAdmin)
	case "dept-login":
		return a.deptLogin(ctx, args)
	case "logout":
		return a.gw.Logout()
	case "whoami":
		return a.whoami()
	case "open":
		return a.open(args)
	case "image":
		return a.image(ctx, args)
	case "raise":
		return a.raise(ctx, args)
	case "history":
		return a.history(ctx, args)
	case "feedback":
		return a.feedback(ctx, args)
	case "complaints":
		return a.complaints(ctx, args)
	case "assign", "reassign":
		return a.assign(ctx, cmd == "reassign", args)
	case "message":
		return a.adminMessage(ctx, args)
	case "counts":
		return a.counts(ctx)
	case "audit":
		return a.audit(ctx, args)
	case "board":
		return a.board(ctx, args)
	case "workers":
		return a.workers(ctx)
	case "complaint-workers":
		return a.complaintWorkers(ctx, args)
	case "add-worker":
		return a.addWorker(ctx, args)
	case "complete":
		return a.complete(ctx, args)
	case "dept-message":
		return a.deptMessage(ctx, args)
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func (a *app) signup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	email := fs.String("email", "", "email")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	resp, err := a.gw.Signup(ctx, dto.SignupRequest{FirstName: *first, LastName: *last, Email: *email, Password: *password})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s (userId %d)\n", resp.Message, resp.UserID)
	return nil
}

func (a *app) login(ctx context.Context, args []string, fn func(context.Context, string, string) (client.Session, error)) error {
	if len(args) != 2 {
		return errors.New("expected EMAIL PASSWORD")
	}
	session, err := fn(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "logged in as %s, home %s\n", session.Role(), client.HomeFor(session.Role()))
	return nil
}

func (a *app) deptLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("dept-login", flag.ContinueOnError)
	dept := fs.String("dept", "", "department name")
	email := fs.String("email", "", "department admin email")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	session, err := a.gw.LoginDepartment(ctx, dto.DepartmentLoginRequest{DepartmentName: *dept, AdminEmail: *email, Password: *password})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "logged in as %s, home %s\n", session.Role(), client.HomeFor(session.Role()))
	return nil
}

func (a *app) whoami() error {
	session := a.gw.Sessions().Current()
	role := session.Role()
	if role.IsAnonymous() {
		fmt.Fprintln(a.out, "not logged in")
		return nil
	}
	fmt.Fprintf(a.out, "%s %s\n", role, session.Email)
	if session.Expired(time.Now()) {
		fmt.Fprintln(a.out, "token expired at", session.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

func (a *app) open(args []string) error {
	if len(args) != 1 {
		return errors.New("expected PATH")
	}
	nav := client.NewNavigator(a.gw.Sessions(), nil)
	fmt.Fprintln(a.out, nav.Navigate(args[0]))
	return nil
}

func (a *app) image(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected KEY")
	}
	key := args[0]
	fs := flag.NewFlagSet("image", flag.ContinueOnError)
	output := fs.String("o", "", "output file, defaults to the key's base name")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *output == "" {
		*output = filepath.Base(key)
	}
	body, contentType, err := a.gw.DownloadImage(ctx, key)
	if err != nil {
		return err
	}
	defer body.Close()
	f, err := os.Create(*output)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "saved %s (%s, %d bytes)\n", *output, contentType, n)
	return nil
}

// warnStale reports a view that could not be reloaded after a committed change.
func (a *app) warnStale(view interface{ Stale() error }) {
	if err := view.Stale(); err != nil {
		fmt.Fprintln(a.errOut, "warning:", err)
	}
}

func (a *app) raise(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("raise", flag.ContinueOnError)
	title := fs.String("title", "", "title")
	category := fs.String("category", "", "category")
	description := fs.String("description", "", "description")
	location := fs.String("location", "", "location")
	city := fs.String("city", "", "city")
	image := fs.String("image", "", "before image file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	userID, err := a.userID()
	if err != nil {
		return err
	}
	in := client.RaiseInput{
		UserID:      userID,
		Title:       *title,
		Category:    *category,
		Description: *description,
		Location:    *location,
		City:        *city,
	}
	if *image != "" {
		if in.Image, err = os.ReadFile(*image); err != nil {
			return err
		}
		in.ImageName = filepath.Base(*image)
	}
	resp, err := a.gw.RaiseComplaint(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s (complaint %d)\n", resp.Message, resp.ComplainID)
	return nil
}

func (a *app) history(ctx context.Context, args []string) error {
	filter, err := parseFilter("history", args)
	if err != nil {
		return err
	}
	userID, err := a.userID()
	if err != nil {
		return err
	}
	h := client.NewCitizenHistory(a.gw, userID, 0)
	if err := h.Refresh(ctx); err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tRATING\tMESSAGE")
	for _, row := range h.View(filter) {
		rating := "-"
		if row.Rating > 0 {
			rating = strconv.Itoa(row.Rating)
		} else if row.CanRate {
			rating = "rate me"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", row.Complaint.ComplainID, row.Complaint.Title, row.StatusLabel, rating, deref(row.Complaint.Message))
	}
	return w.Flush()
}

func (a *app) feedback(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("expected ID RATING [MESSAGE]")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", args[0])
	}
	rating, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid rating %q", args[1])
	}
	userID, err := a.userID()
	if err != nil {
		return err
	}
	h := client.NewCitizenHistory(a.gw, userID, 0)
	if err := h.Refresh(ctx); err != nil {
		return err
	}
	if err := h.SubmitFeedback(ctx, id, rating, strings.Join(args[2:], " ")); err != nil {
		return err
	}
	a.warnStale(h)
	fmt.Fprintln(a.out, "feedback submitted")
	return nil
}

func (a *app) complaints(ctx context.Context, args []string) error {
	filter, err := parseFilter("complaints", args)
	if err != nil {
		return err
	}
	board := client.NewAdminBoard(a.gw, 0)
	if err := board.Refresh(ctx); err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tCITY\tSTATUS\tDEPARTMENT\tRATING\tACTION")
	for _, row := range board.View(filter) {
		rating := "-"
		if row.Feedback != nil {
			rating = strconv.Itoa(row.Feedback.Rating)
		}
		action := ""
		switch {
		case row.ShowReassign:
			action = "reassign"
		case row.CanAssign:
			action = "assign"
		case row.MessageEditable:
			action = "message"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", row.Complaint.ComplainID, row.Complaint.Title, row.Complaint.City, row.StatusLabel, row.DepartmentName, rating, action)
	}
	return w.Flush()
}

func (a *app) assign(ctx context.Context, reassign bool, args []string) error {
	if len(args) != 3 {
		return errors.New("expected ID DEPT_ID DAYS")
	}
	ids, err := parseInts(args[:2])
	if err != nil {
		return err
	}
	days, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid days %q", args[2])
	}
	board := client.NewAdminBoard(a.gw, 0)
	if err := board.Refresh(ctx); err != nil {
		return err
	}
	if reassign {
		err = board.Reassign(ctx, ids[0], ids[1], days)
	} else {
		err = board.Assign(ctx, ids[0], ids[1], days)
	}
	if err != nil {
		return err
	}
	a.warnStale(board)
	fmt.Fprintf(a.out, "complaint %d assigned to department %d for %d days\n", ids[0], ids[1], days)
	return nil
}

func (a *app) adminMessage(ctx context.Context, args []string) error {
	id, text, err := idAndText(args)
	if err != nil {
		return err
	}
	board := client.NewAdminBoard(a.gw, 0)
	if err := board.Refresh(ctx); err != nil {
		return err
	}
	if err := board.UpdateMessage(ctx, id, text); err != nil {
		return err
	}
	a.warnStale(board)
	fmt.Fprintln(a.out, "message updated")
	return nil
}

func (a *app) counts(ctx context.Context) error {
	depts, err := a.gw.DepartmentCounts(ctx)
	if err != nil {
		return err
	}
	cities, err := a.gw.CityCounts(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DEPARTMENT\tCOMPLAINTS")
	for _, d := range depts {
		fmt.Fprintf(w, "%s\t%d\n", d.DepartmentName, d.ComplaintCount)
	}
	fmt.Fprintln(w, "\nCITY\tCOMPLAINTS")
	for _, c := range cities {
		fmt.Fprintf(w, "%s\t%d\n", c.City, c.ComplaintCount)
	}
	return w.Flush()
}

func (a *app) audit(ctx context.Context, args []string) error {
	ids, err := parseInts(args)
	if err != nil || len(ids) != 1 {
		return errors.New("expected ID")
	}
	entries, err := a.gw.AuditTrail(ctx, ids[0])
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "AT\tACTOR\tCHANGE\tNEW")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", e.CreatedAt.Format(time.RFC3339), e.ActorType, e.ChangeType, e.NewValue)
	}
	return w.Flush()
}

func (a *app) board(ctx context.Context, args []string) error {
	filter, err := parseFilter("board", args)
	if err != nil {
		return err
	}
	board, err := a.departmentBoard(ctx)
	if err != nil {
		return err
	}
	deptID, _ := a.departmentID()
	name := client.UnknownDepartment
	if dept, err := a.gw.Department(ctx, deptID); err == nil && dept.Name != "" {
		name = dept.Name
	}
	fmt.Fprintf(a.out, "%s department (id %d)\n\n", name, deptID)
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tDEADLINE\tCOMPLETION")
	for _, row := range board.View(filter) {
		deadline := "-"
		if row.Deadline != nil {
			deadline = row.Deadline.Format("2006-01-02 15:04")
			if row.Overdue {
				deadline += " (overdue)"
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", row.Complaint.ComplainID, row.Complaint.Title, row.StatusLabel, deadline, row.CompletionTime)
	}
	return w.Flush()
}

func (a *app) workers(ctx context.Context) error {
	deptID, err := a.departmentID()
	if err != nil {
		return err
	}
	workers, err := a.gw.Workers(ctx, deptID)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tPHONE")
	for _, wk := range workers {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", wk.ID, wk.Name, wk.Email, wk.PhoneNumber)
	}
	return w.Flush()
}

func (a *app) complaintWorkers(ctx context.Context, args []string) error {
	ids, err := parseInts(args)
	if err != nil || len(ids) != 1 {
		return errors.New("expected ID")
	}
	workers, err := a.gw.ComplaintWorkers(ctx, ids[0])
	if err != nil {
		return err
	}
	if len(workers) == 0 {
		fmt.Fprintf(a.out, "no workers recorded on complaint %d\n", ids[0])
		return nil
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tPHONE")
	for _, wk := range workers {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", wk.ID, wk.Name, wk.Email, wk.PhoneNumber)
	}
	return w.Flush()
}

func (a *app) addWorker(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add-worker", flag.ContinueOnError)
	name := fs.String("name", "", "worker name")
	email := fs.String("email", "", "worker email")
	phone := fs.String("phone", "", "worker phone number")
	if err := fs.Parse(args); err != nil {
		return err
	}
	deptID, err := a.departmentID()
	if err != nil {
		return err
	}
	worker, err := a.gw.CreateWorker(ctx, deptID, dto.CreateWorkerRequest{Name: *name, Email: *email, PhoneNumber: *phone})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "worker %d created\n", worker.ID)
	return nil
}

func (a *app) complete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("expected ID")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", args[0])
	}
	fs := flag.NewFlagSet("complete", flag.ContinueOnError)
	workers := fs.String("workers", "", "comma separated worker ids")
	image := fs.String("image", "", "after image file")
	message := fs.String("message", "", "note for the citizen")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	var workerIDs []int64
	if *workers != "" {
		if workerIDs, err = parseInts(strings.Split(*workers, ",")); err != nil {
			return err
		}
	}
	in := client.CompleteInput{ComplainID: id, Message: *message, WorkerIDs: workerIDs}
	if *image != "" {
		if in.Image, err = os.ReadFile(*image); err != nil {
			return err
		}
		in.ImageName = filepath.Base(*image)
	}
	board, err := a.departmentBoard(ctx)
	if err != nil {
		return err
	}
	if err := board.Complete(ctx, in); err != nil {
		return err
	}
	a.warnStale(board)
	fmt.Fprintf(a.out, "complaint %d resolved\n", id)
	return nil
}

func (a *app) deptMessage(ctx context.Context, args []string) error {
	id, text, err := idAndText(args)
	if err != nil {
		return err
	}
	board, err := a.departmentBoard(ctx)
	if err != nil {
		return err
	}
	if err := board.UpdateMessage(ctx, id, text); err != nil {
		return err
	}
	a.warnStale(board)
	fmt.Fprintln(a.out, "message updated")
	return nil
}

func (a *app) departmentBoard(ctx context.Context) (*client.DepartmentBoard, error) {
	deptID, err := a.departmentID()
	if err != nil {
		return nil, err
	}
	board := client.NewDepartmentBoard(a.gw, deptID, 0)
	if err := board.Refresh(ctx); err != nil {
		return nil, err
	}
	return board, nil
}

func (a *app) userID() (int64, error) {
	session := a.gw.Sessions().Current()
	if session.Role() != client.UserRole() {
		return 0, fmt.Errorf("citizen login required (%s)", client.LoginPathFor(client.UserRole()))
	}
	return session.UserID, nil
}

func (a *app) departmentID() (int64, error) {
	role := a.gw.Sessions().CurrentRole()
	if role.Kind != client.RoleDepartment {
		return 0, fmt.Errorf("department login required (%s)", client.LoginPathFor(client.DepartmentRole(0)))
	}
	return role.DepartmentID, nil
}

func parseFilter(name string, args []string) (domain.StatusFilter, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	raw := fs.String("filter", string(domain.FilterAll), "ALL, Open, PENDING, IN_PROGRESS or RESOLVED")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	switch f := domain.StatusFilter(*raw); f {
	case domain.FilterAll, domain.FilterOpen:
		return f, nil
	}
	status, ok := domain.ParseStatus(*raw)
	if !ok {
		return "", fmt.Errorf("unknown filter %q", *raw)
	}
	return domain.StatusFilter(status), nil
}

func parseInts(raw []string) ([]int64, error) {
	out := make([]int64, 0, len(raw))
	for _, s := range raw {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", s)
		}
		out = append(out, n)
	}
	return out, nil
}

func idAndText(args []string) (int64, string, error) {
	if len(args) < 2 {
		return 0, "", errors.New("expected ID TEXT")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid id %q", args[0])
	}
	return id, strings.Join(args[1:], " "), nil
}

func describe(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Code != "" {
		return fmt.Sprintf("%s [%s]", apiErr.Message, apiErr.Code)
	}
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"coyote/cmd/identity"
	coyoteapi "coyote/cmd/internal/api"
	"coyote/cmd/internal/session"
	"coyote/cmd/security/token"
)

var (
	// ErrUsage marks a malformed command line.
	ErrUsage = errors.New("usage error")

	// ErrSelfDelete is returned when an administrator targets their own account.
	ErrSelfDelete = errors.New("you cannot delete your own account")
)

type access int

const (
	accessPublic access = iota
	accessUser
	accessAdmin
)

type command struct {
	usage  string
	access access
	run    func(ctx context.Context, a *App, args []string) error
}

// commands is keyed by the command words, e.g. "dropouts register".
var commands = map[string]command{
	"register": {usage: "register -control-number CN -name NAME -career C -age N -semester N [-password PW]", run: cmdRegister},
	"login":    {usage: "login [-control-number] CN [-password PW]", run: cmdLogin},
	"logout":   {usage: "logout", run: cmdLogout},
	"whoami":   {usage: "whoami", run: cmdWhoami},
	"status":   {usage: "status", run: cmdStatus},
	"lookup":   {usage: "lookup CN", run: cmdLookup},
	"upload":   {usage: "upload [-name N] [-content-type T] PATH", access: accessUser, run: cmdUpload},

	"dropouts register": {usage: "dropouts register -control-number CN -type T -period P -absence A -date YYYY-MM-DD -reason R", access: accessAdmin, run: cmdDropoutRegister},
	"dropouts list":     {usage: "dropouts list", access: accessAdmin, run: cmdDropoutList},
	"dropouts search":   {usage: "dropouts search CN", access: accessAdmin, run: cmdDropoutSearch},

	"posts create": {usage: "posts create -title T -prompt P -thumbnail PATH -video PATH", access: accessUser, run: cmdPostCreate},
	"posts list":   {usage: "posts list", access: accessUser, run: cmdPostList},
	"posts latest": {usage: "posts latest", access: accessUser, run: cmdPostLatest},
	"posts search": {usage: "posts search QUERY", access: accessUser, run: cmdPostSearch},
	"posts user":   {usage: "posts user [ID]", access: accessUser, run: cmdPostUser},

	"users delete": {usage: "users delete ID", access: accessAdmin, run: cmdUserDelete},
}

// lookupCommand resolves the longest matching command name.
func lookupCommand(args []string) (string, command, []string, bool) {
	if len(args) >= 2 {
		name := args[0] + " " + args[1]
		if c, ok := commands[name]; ok {
			return name, c, args[2:], true
		}
	}
	if len(args) >= 1 {
		if c, ok := commands[args[0]]; ok {
			return args[0], c, args[1:], true
		}
	}
	return "", command{}, nil, false
}

// Usage lists every command.
func Usage() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("usage: coyote [global flags] <command> [flags]\n\ncommands:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %s\n", commands[name].usage)
	}
	return b.String()
}

// Execute initializes the session and runs the command named by args.
func (a *App) Execute(ctx context.Context, args []string) error {
	name, cmd, rest, ok := lookupCommand(args)
	if !ok {
		if len(args) == 0 {
			return fmt.Errorf("%w: missing command", ErrUsage)
		}
		return fmt.Errorf("%w: unknown command %q", ErrUsage, strings.Join(args, " "))
	}

	snap := a.session.Initialize(ctx)
	a.log.Debug("command.start", "command", name, "state", snap.State.String())

	switch cmd.access {
	case accessUser:
		if !snap.IsLogged() {
			return session.ErrNotAuthenticated
		}
	case accessAdmin:
		if _, err := a.session.RequireRole(identity.RoleAdmin); err != nil {
			return err
		}
	}

	start := time.Now()
	err := cmd.run(ctx, a, rest)
	if err != nil {
		a.log.Warn("command.fail", "command", name, "err", err, "duration_ms", time.Since(start).Milliseconds())
		return err
	}
	a.log.Info("command.done", "command", name, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Describe returns the text shown to people for err.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, session.ErrNotAuthenticated):
		return "not signed in; run `coyote login` first"
	case errors.Is(err, session.ErrForbiddenRole):
		return "this command requires an administrator account"
	case errors.Is(err, ErrUsage), errors.Is(err, ErrSelfDelete), errors.Is(err, ErrConfig):
		return err.Error()
	}
	return coyoteapi.Message(err)
}

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrUsage):
		return 2
	default:
		return 1
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUsage, fs.Name(), err)
	}
	return nil
}

// password returns the flag value, then COYOTE_PASSWORD, then one line of input.
func (a *App) password(flagVal string) (string, error) {
	if flagVal != "" {
		return flagVal, nil
	}
	if v := os.Getenv("COYOTE_PASSWORD"); v != "" {
		return v, nil
	}
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

type sessionView struct {
	State string            `json:"state"`
	User  *identity.Profile `json:"user"`
}

func viewOf(snap session.Snapshot) sessionView {
	return sessionView{State: snap.State.String(), User: snap.Profile}
}

func cmdRegister(ctx context.Context, a *App, args []string) error {
	fs := newFlagSet("register")
	var in coyoteapi.RegisterInput
	fs.StringVar(&in.ControlNumber, "control-number", "", "control number")
	fs.StringVar(&in.FullName, "name", "", "full name")
	fs.StringVar(&in.Career, "career", "", "career")
	fs.StringVar(&in.Age, "age", "", "age")
	fs.StringVar(&in.Semester, "semester", "", "semester")
	pw := fs.String("password", "", "password")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	var err error
	if in.Password, err = a.password(*pw); err != nil {
		return err
	}
	p, err := a.client.Register(ctx, in)
	if err != nil {
		return err
	}
	return a.print(viewOf(a.session.SetAuthenticated(p)))
}

func cmdLogin(ctx context.Context, a *App, args []string) error {
	fs := newFlagSet("login")
	cn := fs.String("control-number", "", "control number")
	pw := fs.String("password", "", "password")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *cn == "" && fs.NArg() > 0 {
		*cn = fs.Arg(0)
	}

	secret, err := a.password(*pw)
	if err != nil {
		return err
	}
	p, err := a.client.SignIn(ctx, *cn, secret)
	if err != nil {
		a.session.Clear()
		return err
	}
	return a.print(viewOf(a.session.SetAuthenticated(p)))
}

func cmdLogout(ctx context.Context, a *App, _ []string) error {
	if err := a.client.SignOut(ctx); err != nil {
		return err
	}
	return a.print(viewOf(a.session.Clear()))
}

func cmdWhoami(_ context.Context, a *App, _ []string) error {
	return a.print(viewOf(a.session.Snapshot()))
}

type statusView struct {
	State       string             `json:"state"`
	Token       bool               `json:"token"`
	Fingerprint string             `json:"fingerprint,omitempty"`
	Claims      *session.TokenInfo `json:"claims,omitempty"`
	Expired     bool               `json:"expired,omitempty"`
}

func cmdStatus(ctx context.Context, a *App, _ []string) error {
	view := statusView{State: a.session.Snapshot().State.String()}

	tok, ok, err := a.tokens.Load(ctx)
	if err != nil {
		return err
	}
	if ok {
		view.Token = true
		view.Fingerprint = token.Fingerprint(tok)
		if info, ok := session.InspectToken(tok); ok {
			view.Claims = &info
			view.Expired = info.Expired(time.Now())
		}
	}
	return a.print(view)
}

func cmdLookup(ctx context.Context, a *App, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: lookup needs exactly one control number", ErrUsage)
	}
	res, err := a.client.FindUserByControlNumber(ctx, args[0])
	if err != nil {
		return err
	}
	return a.print(res)
}

func cmdUpload(ctx context.Context, a *App, args []string) error {
	fs := newFlagSet("upload")
	var ref coyoteapi.FileRef
	fs.StringVar(&ref.Name, "name", "", "file name sent to the server")
	fs.StringVar(&ref.ContentType, "content-type", "", "content type of the file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: upload needs exactly one path", ErrUsage)
	}
	ref.Path = fs.Arg(0)

	u, err := a.client.UploadFile(ctx, ref)
	if err != nil {
		return err
	}
	return a.print(map[string]string{"fileUrl": u})
}

func cmdDropoutRegister(ctx context.Context, a *App, args []string) error {
	fs := newFlagSet("dropouts register")
	var in coyoteapi.DropoutInput
	fs.StringVar(&in.ControlNumber, "control-number", "", "student control number")
	fs.StringVar(&in.DropoutType, "type", "", "dropout type")
	fs.StringVar(&in.DropoutPeriod, "period", "", "dropout period")
	fs.StringVar(&in.AbsencePeriod, "absence", "", "absence period")
	fs.StringVar(&in.DropoutDate, "date", "", "dropout date (YYYY-MM-DD)")
	fs.StringVar(&in.Reason, "reason", "", "reason")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	res, err := a.client.RegisterDropout(ctx, in)
	if err != nil {
		return err
	}
	return a.print(res)
}

func cmdDropoutList(ctx context.Context, a *App, _ []string) error {
	ds, err := a.client.ListDropouts(ctx)
	if err != nil {
		return err
	}
	return a.print(map[string]any{"dropouts": ds})
}

func cmdDropoutSearch(ctx context.Context, a *App, args []string) error {
	ds, err := a.client.SearchDropouts(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	return a.print(map[string]any{"dropouts": ds})
}

func cmdPostCreate(ctx context.Context, a *App, args []string) error {
	fs := newFlagSet("posts create")
	var in coyoteapi.PostInput
	fs.StringVar(&in.Title, "title", "", "post title")
	fs.StringVar(&in.Prompt, "prompt", "", "prompt used to make the video")
	fs.StringVar(&in.Thumbnail.Path, "thumbnail", "", "thumbnail image path")
	fs.StringVar(&in.Video.Path, "video", "", "video file path")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if p, ok := a.session.Profile(); ok {
		in.UserID = p.ID
	}

	post, err := a.client.CreateVideoPost(ctx, in)
	if err != nil {
		return err
	}
	return a.print(post)
}

func cmdPostList(ctx context.Context, a *App, _ []string) error {
	return a.printPosts(a.client.ListPosts(ctx))
}

func cmdPostLatest(ctx context.Context, a *App, _ []string) error {
	return a.printPosts(a.client.ListLatestPosts(ctx))
}

func cmdPostSearch(ctx context.Context, a *App, args []string) error {
	return a.printPosts(a.client.SearchPosts(ctx, strings.Join(args, " ")))
}

func cmdPostUser(ctx context.Context, a *App, args []string) error {
	var id int64
	switch len(args) {
	case 0:
		p, _ := a.session.Profile()
		id = p.ID
	case 1:
		n, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		id = n
	default:
		return fmt.Errorf("%w: posts user takes at most one id", ErrUsage)
	}
	return a.printPosts(a.client.ListUserPosts(ctx, id))
}

func cmdUserDelete(ctx context.Context, a *App, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: users delete needs exactly one id", ErrUsage)
	}
	id, err := parseUserID(args[0])
	if err != nil {
		return err
	}
	if me, ok := a.session.Profile(); ok && me.ID == id {
		return ErrSelfDelete
	}

	res, err := a.client.DeleteUser(ctx, id)
	if err != nil {
		return err
	}
	return a.print(res)
}

func parseUserID(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: user id must be a positive integer, got %q", ErrUsage, s)
	}
	return n, nil
}

func (a *App) printPosts(posts []coyoteapi.Post, err error) error {
	if err != nil {
		return err
	}
	return a.print(map[string]any{"posts": posts})
}

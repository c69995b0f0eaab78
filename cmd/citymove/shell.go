package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/citymove/citymove/internal/account"
	"github.com/citymove/citymove/internal/geo"
	"github.com/citymove/citymove/internal/geocode"
	"github.com/citymove/citymove/internal/mapview"
	"github.com/citymove/citymove/internal/planner"
	"github.com/citymove/citymove/internal/routing"
	"github.com/citymove/citymove/pkg/polyline"
)

const helpText = `commands:
  city [name]                       list cities or move the map to one
  from <place>                      set the origin
  to <place>                        set the destination
  mode <walking|cycling|driving>    set the travel mode
  route                             request a route
  explore                           show a sample loop around the city
  show                              print the current selection and route
  geojson [file]                    export the map as GeoJSON
  login <username> <password>       sign in
  signup <username> <email> <password>
  logout                            sign out
  profile [field=value ...]         show or update the profile (name, email, bio, avatar)
  help                              print this help
  quit                              exit`

// errQuit ends the command loop.
var errQuit = errors.New("quit")

// shell drives a planner from line-oriented commands.
type shell struct {
	planner *planner.Planner
	account *account.Client
	scene   func() *mapview.Scene
	out     io.Writer

	// timeout bounds each network command.
	timeout time.Duration
}

// run executes commands from in until EOF, quit, or ctx is done.
func (s *shell) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	s.prompt()
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}

		err := s.exec(ctx, scanner.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
		s.prompt()
	}
	return scanner.Err()
}

func (s *shell) prompt() {
	fmt.Fprint(s.out, "citymove> ")
}

// exec runs one command line.
func (s *shell) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	switch cmd {
	case "help", "?":
		fmt.Fprintln(s.out, helpText)
		return nil
	case "quit", "exit":
		return errQuit
	case "city":
		return s.city(rest)
	case "from":
		return s.resolve(ctx, planner.Origin, rest)
	case "to":
		return s.resolve(ctx, planner.Destination, rest)
	case "mode":
		return s.mode(rest)
	case "route":
		return s.route(ctx)
	case "explore":
		return s.explore()
	case "show":
		s.show()
		return nil
	case "geojson":
		return s.geojson(rest)
	case "login":
		return s.login(ctx, args)
	case "signup":
		return s.signup(ctx, args)
	case "logout":
		return s.logout(ctx)
	case "profile":
		return s.profile(ctx, args)
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
}

func (s *shell) city(name string) error {
	if name == "" {
		current := s.planner.Snapshot().City.Name
		for _, c := range planner.Cities {
			marker := " "
			if c.Name == current {
				marker = "*"
			}
			fmt.Fprintf(s.out, "%s %-14s %s\n", marker, c.Name, c.Info)
		}
		return nil
	}

	c, err := s.planner.SelectCity(name)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "map centred on %s (%s)\n", c.Name, c.Center)
	return nil
}

func (s *shell) resolve(ctx context.Context, e planner.Endpoint, text string) error {
	if text == "" {
		return fmt.Errorf("usage: %s <place>", endpointCommand(e))
	}

	place, err := s.planner.Resolve(ctx, e, geocode.Request{Text: text})
	if err != nil {
		if errors.Is(err, geocode.ErrNoMatchFound) {
			return fmt.Errorf("no place found for %q", text)
		}
		return err
	}
	fmt.Fprintf(s.out, "%s: %s (%s)\n", e, place.Label, place.Point)
	return nil
}

func endpointCommand(e planner.Endpoint) string {
	if e == planner.Origin {
		return "from"
	}
	return "to"
}

func (s *shell) mode(name string) error {
	m, err := routing.ParseMode(name)
	if err != nil {
		return err
	}
	if err := s.planner.SetMode(m); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "mode: %s\n", m)
	return nil
}

func (s *shell) route(ctx context.Context) error {
	result, err := s.planner.RequestRoute(ctx)
	if err != nil {
		if msg := s.planner.Snapshot().Message; msg != "" {
			return errors.New(msg)
		}
		return err
	}
	fmt.Fprintln(s.out, describeRoute(result))
	return nil
}

func (s *shell) explore() error {
	loop, err := s.planner.Explore()
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "sample loop around %s: %d points, %.1f km\n",
		s.planner.Snapshot().City.Name, len(loop), polyline.Length(geo.LineString(loop))/1000)
	return nil
}

func (s *shell) show() {
	snap := s.planner.Snapshot()

	fmt.Fprintf(s.out, "city:        %s\n", snap.City.Name)
	fmt.Fprintf(s.out, "origin:      %s\n", placeText(snap.Origin))
	fmt.Fprintf(s.out, "destination: %s\n", placeText(snap.Destination))
	fmt.Fprintf(s.out, "mode:        %s\n", snap.Mode)

	switch {
	case snap.Pending:
		fmt.Fprintln(s.out, "route:       pending")
	case snap.Route != nil:
		fmt.Fprintf(s.out, "route:       %s\n", describeRoute(snap.Route))
		fmt.Fprintf(s.out, "polyline:    %s\n", polyline.Encode(geo.LineString(snap.Route.Path)))
	case snap.Explore != nil:
		fmt.Fprintf(s.out, "route:       sample loop, %d points\n", len(snap.Explore))
	default:
		fmt.Fprintln(s.out, "route:       none")
	}
	if snap.Message != "" {
		fmt.Fprintf(s.out, "message:     %s\n", snap.Message)
	}
	if s.account != nil && s.account.LoggedIn() {
		fmt.Fprintln(s.out, "account:     signed in")
	}
}

func placeText(p *geo.Place) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%s (%s)", p.Label, p.Point)
}

func describeRoute(r *routing.Result) string {
	km := polyline.Length(geo.LineString(r.Path)) / 1000
	text := fmt.Sprintf("%d points, %.1f km", len(r.Path), km)
	if secs, ok := r.DurationSeconds(); ok {
		d := time.Duration(secs * float64(time.Second)).Round(time.Second)
		text += ", " + d.String()
	}
	return text
}

func (s *shell) geojson(file string) error {
	scene := s.scene()
	if scene == nil {
		return errors.New("no map")
	}
	data, err := scene.GeoJSON()
	if err != nil {
		return err
	}
	if file == "" {
		_, err = fmt.Fprintln(s.out, string(data))
		return err
	}
	if err := os.WriteFile(file, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "wrote %s\n", file)
	return nil
}

func (s *shell) login(ctx context.Context, args []string) error {
	if s.account == nil {
		return errors.New("accounts are not available")
	}
	if len(args) != 2 {
		return errors.New("usage: login <username> <password>")
	}
	if err := s.account.Login(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "signed in as %s\n", args[0])
	return nil
}

func (s *shell) signup(ctx context.Context, args []string) error {
	if s.account == nil {
		return errors.New("accounts are not available")
	}
	if len(args) != 3 {
		return errors.New("usage: signup <username> <email> <password>")
	}
	creds := account.Credentials{Username: args[0], Email: args[1], Password: args[2]}
	if err := s.account.Signup(ctx, creds); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "account created for %s\n", args[0])
	return nil
}

func (s *shell) logout(ctx context.Context) error {
	if s.account == nil {
		return errors.New("accounts are not available")
	}
	if err := s.account.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "signed out")
	return nil
}

func (s *shell) profile(ctx context.Context, args []string) error {
	if s.account == nil {
		return errors.New("accounts are not available")
	}

	u, err := s.account.Profile(ctx)
	if err != nil {
		return err
	}

	if len(args) > 0 {
		for _, arg := range args {
			key, value, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("expected field=value, got %q", arg)
			}
			switch strings.ToLower(key) {
			case "name":
				u.Name = value
			case "email":
				u.Email = value
			case "bio":
				u.Bio = value
			case "avatar":
				u.AvatarURL = value
			default:
				return fmt.Errorf("unknown profile field %q", key)
			}
		}
		if u, err = s.account.UpdateProfile(ctx, *u); err != nil {
			return err
		}
	}

	fmt.Fprintf(s.out, "name:   %s\nemail:  %s\n", u.Name, u.Email)
	if u.Bio != "" {
		fmt.Fprintf(s.out, "bio:    %s\n", u.Bio)
	}
	if u.AvatarURL != "" {
		fmt.Fprintf(s.out, "avatar: %s\n", u.AvatarURL)
	}
	return nil
}

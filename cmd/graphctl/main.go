package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/DoyleJ11/opsboard-relay/internal/client"
	"github.com/DoyleJ11/opsboard-relay/internal/graph"
	"github.com/DoyleJ11/opsboard-relay/internal/layout"
)

const GraphCtlVersion = "0.1.0"

func main() {
	usage := `Graph control for relay boards.

Usage:
    graphctl show [--url=<url>] [--limits=<file>] <board>
    graphctl autowire [--url=<url>] [--limits=<file>] [--tags] [--dry-run] <board>
    graphctl layout [--url=<url>] [--limits=<file>] [--radius=<r>...] [--dry-run] <board>
    graphctl watch [--url=<url>] <board>

Options:
    -h --help          Show this screen.
    --version          Show version.
    --url=<url>        Relay base url [default: http://localhost:4000].
    --limits=<file>    YAML file with max_nodes_per_router, max_routers_per_hub, max_hubs_per_game, tag_matching.
    --tags             Only wire children to parents sharing a tag.
    --radius=<r>       Sphere radii for hub, router and node rings, in that order.
    --dry-run          Print the result without writing it back.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], GraphCtlVersion)
	if err != nil {
		fail(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if show_, _ := opts.Bool("show"); show_ {
		err = show(ctx, opts)
	} else if autowire_, _ := opts.Bool("autowire"); autowire_ {
		err = autowire(ctx, opts)
	} else if layout_, _ := opts.Bool("layout"); layout_ {
		err = applyLayout(ctx, opts)
	} else if watch_, _ := opts.Bool("watch"); watch_ {
		err = watch(ctx, opts)
	}
	if err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "graphctl:", err)
	os.Exit(1)
}

func newClient(opts docopt.Opts) *client.Client {
	url, _ := opts.String("--url")
	return client.New(url)
}

func loadLimits(opts docopt.Opts) (layout.Limits, error) {
	limits := layout.DefaultLimits()
	if path, _ := opts.String("--limits"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return limits, err
		}
		if err := yaml.Unmarshal(raw, &limits); err != nil {
			return limits, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if tags, _ := opts.Bool("--tags"); tags {
		limits.TagMatching = true
	}
	return limits, nil
}

func loadRadii(opts docopt.Opts) (layout.Radii, error) {
	radii := layout.DefaultRadii()
	vals, _ := opts["--radius"].([]string)
	dst := []*float64{&radii.Hub, &radii.Router, &radii.Node}
	for i, v := range vals {
		if i >= len(dst) {
			break
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return radii, fmt.Errorf("--radius %q: %w", v, err)
		}
		*dst[i] = f
	}
	return radii, nil
}

// editorFor loads the board's graph into a fresh editor.
func editorFor(ctx context.Context, c *client.Client, boardID string) (*graph.Editor, error) {
	b, err := c.GetBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return graph.NewEditor(b.Graph3D), nil
}

func show(ctx context.Context, opts docopt.Opts) error {
	boardID, _ := opts.String("<board>")
	limits, err := loadLimits(opts)
	if err != nil {
		return err
	}
	e, err := editorFor(ctx, newClient(opts), boardID)
	if err != nil {
		return err
	}
	g := e.Graph()

	counts := map[graph.NodeType]int{}
	for _, n := range g.Nodes {
		counts[n.Type]++
	}
	fmt.Printf("board %s: %d nodes, %d edges\n", boardID, len(g.Nodes), len(g.Edges))
	for i := len(graph.TierOrder) - 1; i >= 0; i-- {
		t := graph.TierOrder[i]
		n := counts[t]
		if t == graph.TypeNode {
			n += counts[""]
		}
		fmt.Printf("  %-7s %d\n", t, n)
	}

	plan := layout.Assign(g, limits)
	fmt.Printf("autowire would add %d edges, %d orphans\n", len(plan.Inferred), len(plan.Orphans))
	for _, o := range plan.Orphans {
		fmt.Printf("  orphan %s\n", o)
	}
	return nil
}

func autowire(ctx context.Context, opts docopt.Opts) error {
	boardID, _ := opts.String("<board>")
	limits, err := loadLimits(opts)
	if err != nil {
		return err
	}
	c := newClient(opts)
	e, err := editorFor(ctx, c, boardID)
	if err != nil {
		return err
	}
	ids, err := layout.ApplyAutoWire(e, limits)
	if err != nil {
		return err
	}
	fmt.Printf("added %d edges\n", len(ids))
	return push(ctx, c, opts, boardID, e)
}

func applyLayout(ctx context.Context, opts docopt.Opts) error {
	boardID, _ := opts.String("<board>")
	limits, err := loadLimits(opts)
	if err != nil {
		return err
	}
	radii, err := loadRadii(opts)
	if err != nil {
		return err
	}
	c := newClient(opts)
	e, err := editorFor(ctx, c, boardID)
	if err != nil {
		return err
	}
	if err := layout.ApplyLayout(e, limits, radii); err != nil {
		return err
	}
	fmt.Printf("placed %d nodes\n", len(e.Graph().Nodes))
	return push(ctx, c, opts, boardID, e)
}

// push writes the edited graph back unless this is a dry run, in which case
// it prints it.
func push(ctx context.Context, c *client.Client, opts docopt.Opts, boardID string, e *graph.Editor) error {
	if undo, _ := e.History(); undo == 0 {
		fmt.Println("nothing to change")
		return nil
	}
	if dry, _ := opts.Bool("--dry-run"); dry {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(e.Graph())
	}
	res, err := c.PutGraph3D(ctx, boardID, e.Graph())
	if err != nil {
		return err
	}
	fmt.Printf("board %s now at version %d\n", boardID, res.Version)
	return nil
}

// watch prints every event on the board until interrupted.
func watch(ctx context.Context, opts docopt.Opts) error {
	boardID, _ := opts.String("<board>")
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	sub, err := newClient(opts).Subscribe(dialCtx, boardID)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for env := range sub.Events() {
			fmt.Printf("%s %s %s\n", time.Now().Format(time.TimeOnly), env.Event, env.Data)
		}
		return fmt.Errorf("connection closed: %w", sub.Err())
	})
	g.Go(func() error {
		<-gctx.Done()
		return sub.Close()
	})
	err = g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

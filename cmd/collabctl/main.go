package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cwrk-planet/collab-service/internal/client"
	"github.com/cwrk-planet/collab-service/internal/domain"
	"github.com/cwrk-planet/collab-service/internal/projects"
	"github.com/cwrk-planet/collab-service/internal/protocol"
	"github.com/cwrk-planet/collab-service/internal/sandbox"
	grpcx "github.com/cwrk-planet/collab-service/internal/transport/grpc"

	"github.com/docopt/docopt-go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const CollabCtlVersion = "0.1.0"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := `Collab control.

The default urls are:
    ws_url: ws://localhost:8080/ws
    api_url: http://localhost:3000
    sandbox_url: https://emkc.org/api/v2/piston
    grpc: localhost:9090

Usage:
    collabctl join <room> <name> [--ws_url=<ws_url>] [--jwt=<jwt>]
        [--durable_id=<id>]
        [--dir=<dir>]
        [--project=<project_id>] [--api_url=<api_url>]
    collabctl run <file> [--sandbox_url=<sandbox_url>]
    collabctl rooms [--grpc=<addr>] [--jwt=<jwt>]
    collabctl participants <room> [--grpc=<addr>] [--jwt=<jwt>]

Options:
    -h --help                    Show this screen.
    --version                    Show version.
    --ws_url=<ws_url>
    --api_url=<api_url>
    --sandbox_url=<sandbox_url>
    --grpc=<addr>                gRPC admin address.
    --jwt=<jwt>                  Access token.
    --durable_id=<id>            Durable user id when the server runs without auth.
    --dir=<dir>                  Seed files from this directory before joining.
    --project=<project_id>       Load the project and save it back on exit.`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], CollabCtlVersion)
	if err != nil {
		panic(err)
	}

	if join_, _ := opts.Bool("join"); join_ {
		join(opts)
	} else if run_, _ := opts.Bool("run"); run_ {
		run(opts)
	} else if rooms_, _ := opts.Bool("rooms"); rooms_ {
		rooms(opts)
	} else if participants_, _ := opts.Bool("participants"); participants_ {
		participants(opts)
	}
}

func stringOr(opts docopt.Opts, key, def string) string {
	if v, err := opts.String(key); err == nil && v != "" {
		return v
	}
	return def
}

func join(opts docopt.Opts) {
	roomID, _ := opts.String("<room>")
	name, _ := opts.String("<name>")
	token := stringOr(opts, "--jwt", "")
	durableID := stringOr(opts, "--durable_id", "")
	projectID := stringOr(opts, "--project", "")
	apiURL := stringOr(opts, "--api_url", "http://localhost:3000")

	projectClient := projects.NewClient(apiURL, projects.WithToken(token))

	sessOpts := client.Options{
		Projects: projectClient,
		OnChange: printState,
		OnDenied: func(p protocol.PermissionDeniedPayload) {
			Out.Printf("denied: %s (%s)", p.Action, p.Reason)
		},
	}
	if durableID != "" {
		sessOpts.Identity = func(context.Context) (client.Identity, error) {
			return client.Identity{DurableID: durableID}, nil
		}
	}

	sess := client.NewSession(client.WSDialer{
		URL:   stringOr(opts, "--ws_url", "ws://localhost:8080/ws"),
		Token: token,
	}, sessOpts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if projectID != "" {
		p, err := projectClient.Get(ctx, projectID)
		if err != nil {
			Err.Fatalf("load project %s: %v", projectID, err)
		}
		sess.ReplaceFiles(p.ID, p.Files, "")
	}
	if dir := stringOr(opts, "--dir", ""); dir != "" {
		if err := seedDir(sess, dir); err != nil {
			Err.Fatalf("seed %s: %v", dir, err)
		}
	}

	if err := sess.JoinRoom(ctx, roomID, name); err != nil {
		Err.Fatalf("join %s: %v", roomID, err)
	}
	<-ctx.Done()

	if projectID != "" {
		saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sess.SaveProject(saveCtx); err != nil {
			Err.Printf("save project: %v", err)
		}
	}
	sess.LeaveRoom()
}

func seedDir(sess *client.Session, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := domain.LanguageFor(e.Name()); !ok {
			continue
		}
		body, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return err
		}
		f, err := sess.CreateFile(e.Name())
		if err != nil {
			return err
		}
		if err := sess.UpdateContent(f.ID, string(body)); err != nil {
			return err
		}
	}
	return nil
}

func printState(st client.State) {
	names := make([]string, 0, len(st.Users))
	for _, u := range st.Users {
		names = append(names, fmt.Sprintf("%s(%s)", u.DisplayName, u.Role))
	}
	Out.Printf("room=%s role=%s sync=%s files=%d users=[%s]",
		st.RoomID, st.Role, st.Sync, len(st.Files), strings.Join(names, " "))
}

func run(opts docopt.Opts) {
	path, _ := opts.String("<file>")
	lang, ok := domain.LanguageFor(path)
	if !ok {
		Err.Fatalf("unsupported file: %s", path)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		Err.Fatalf("read %s: %v", path, err)
	}

	runner := sandbox.NewClient(stringOr(opts, "--sandbox_url", "https://emkc.org/api/v2/piston"), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	out, err := runner.Execute(ctx, lang, string(body))
	if err != nil {
		Err.Fatalf("run: %v", err)
	}
	if out.IsError {
		Err.Print(out.Message)
		os.Exit(1)
	}
	Out.Print(out.Message)
}

func adminClient(opts docopt.Opts) (*grpcx.RoomAdminClient, context.Context, func()) {
	cc, err := grpc.NewClient(stringOr(opts, "--grpc", "localhost:9090"),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		Err.Fatalf("grpc: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if token := stringOr(opts, "--jwt", ""); token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	}
	return grpcx.NewRoomAdminClient(cc), ctx, func() {
		cancel()
		_ = cc.Close()
	}
}

func rooms(opts docopt.Opts) {
	c, ctx, done := adminClient(opts)
	defer done()

	list, err := c.ListRooms(ctx)
	if err != nil {
		Err.Fatalf("list rooms: %v", err)
	}
	for _, v := range list.GetValues() {
		f := v.GetStructValue().GetFields()
		Out.Printf("%s\t%d", f["id"].GetStringValue(), int(f["participants"].GetNumberValue()))
	}
}

func participants(opts docopt.Opts) {
	roomID, _ := opts.String("<room>")
	c, ctx, done := adminClient(opts)
	defer done()

	list, err := c.ListParticipants(ctx, roomID)
	if err != nil {
		Err.Fatalf("list participants: %v", err)
	}
	for _, v := range list.GetValues() {
		f := v.GetStructValue().GetFields()
		Out.Printf("%s\t%s\t%s", f["id"].GetStringValue(),
			f["username"].GetStringValue(), f["role"].GetStringValue())
	}
}

// Command todo-cli manages a to-do list from the terminal.
//
//	todo-cli login <email> <password>
//	todo-cli join  -email <email> -password <password> [-name <name>]
//	todo-cli check <email>
//	todo-cli list
//	todo-cli add <title>
//	todo-cli done [-undo] <id>
//	todo-cli remove <id>
//	todo-cli promote
//	todo-cli session
//	todo-cli logout
//
// Credentials persist in the configured store between runs. Settings come
// from gotodo.yaml and GOTODO_* variables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	goTodo "github.com/MrEthical07/goTodo"
	"github.com/MrEthical07/goTodo/internal/config"
	"github.com/MrEthical07/goTodo/internal/logger"
	"github.com/MrEthical07/goTodo/metrics/export/prometheus"
	"go.uber.org/zap"
)

type terminalNavigator struct{}

func (terminalNavigator) OnLogout() {
	fmt.Fprintln(os.Stderr, "Signed out.")
}

func (terminalNavigator) Redirect(path string) {
	if path == "/login" {
		fmt.Fprintln(os.Stderr, "Run `todo-cli login <email> <password>` to sign in again.")
		return
	}
	fmt.Fprintf(os.Stderr, "Next: %s\n", path)
}

func (terminalNavigator) Alert(msg string) {
	fmt.Fprintln(os.Stderr, "!", msg)
}

func main() {
	configDir := flag.String("config", "", "extra directory searched for gotodo.yaml")
	showMetrics := flag.Bool("metrics", false, "print client metrics after the command")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	if err := run(*configDir, *showMetrics, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: todo-cli [-config dir] [-metrics] <login|join|check|list|add|done|remove|promote|session|logout> [args]")
	flag.PrintDefaults()
}

func run(configDir string, showMetrics bool, cmd string, args []string) error {
	var paths []string
	if configDir != "" {
		paths = append(paths, configDir)
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if showMetrics {
		cfg.Metrics.Enabled = true
	}

	log, err := logger.New(cfg.Mode, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	clientCfg, err := cfg.Client()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	builder := goTodo.New().
		WithConfig(clientCfg).
		WithNavigator(terminalNavigator{}).
		WithLogger(log).
		WithAuditSink(goTodo.NewZapSink(log))
	if clientCfg.Store.Backend == goTodo.StoreRedis {
		rdb, closeRedis, err := cfg.OpenRedis(ctx)
		if err != nil {
			return err
		}
		defer closeRedis()
		builder = builder.WithRedis(rdb)
	}

	client, err := builder.Build()
	if err != nil {
		return err
	}
	defer client.Close()

	for _, w := range clientCfg.Lint() {
		log.Debug("config lint", zap.String("code", w.Code), zap.String("message", w.Message))
	}

	err = dispatch(ctx, client, cmd, args)
	if showMetrics {
		fmt.Fprint(os.Stderr, prometheus.NewPrometheusExporter(client).Render())
	}
	return err
}

func dispatch(ctx context.Context, client *goTodo.Client, cmd string, args []string) error {
	switch cmd {
	case "login":
		if len(args) != 2 {
			return errors.New("login needs <email> <password>")
		}
		lr, err := client.Login(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Signed in as %s (%s)\n", lr.Email, lr.Role)
		return nil

	case "join":
		fs := flag.NewFlagSet("join", flag.ContinueOnError)
		email := fs.String("email", "", "account email")
		password := fs.String("password", "", "account password")
		name := fs.String("name", "", "display name")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := client.SignUp(ctx, goTodo.SignUpRequest{Email: *email, Password: *password, UserName: *name}); err != nil {
			return err
		}
		fmt.Printf("Account %s created. Sign in with `todo-cli login`.\n", *email)
		return nil

	case "check":
		if len(args) != 1 {
			return errors.New("check needs <email>")
		}
		taken, err := client.CheckEmail(ctx, args[0])
		if err != nil {
			return err
		}
		if taken {
			fmt.Println("taken")
		} else {
			fmt.Println("available")
		}
		return nil

	case "list":
		list, err := client.ListTodos(ctx)
		if err != nil {
			return err
		}
		printList(list)
		return nil

	case "add":
		if len(args) == 0 {
			return errors.New("add needs <title>")
		}
		list, err := client.CreateTodo(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		printList(list)
		return nil

	case "done":
		fs := flag.NewFlagSet("done", flag.ContinueOnError)
		undo := fs.Bool("undo", false, "mark the item as not done")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return errors.New("done needs <id>")
		}
		list, err := client.CheckTodo(ctx, fs.Arg(0), !*undo)
		if err != nil {
			return err
		}
		printList(list)
		return nil

	case "remove":
		if len(args) != 1 {
			return errors.New("remove needs <id>")
		}
		list, err := client.DeleteTodo(ctx, args[0])
		if err != nil {
			return err
		}
		printList(list)
		return nil

	case "promote":
		pr, err := client.Promote(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Account promoted to %s\n", pr.Role)
		return nil

	case "session":
		info, err := client.Session(ctx)
		if err != nil {
			return err
		}
		printSession(info)
		return nil

	case "logout":
		return client.Logout(ctx)

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printList(list goTodo.TodoList) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, t := range list.Todos {
		mark := " "
		if t.Done {
			mark = "x"
		}
		fmt.Fprintf(w, "[%s]\t%s\t%s\n", mark, t.ID, t.Title)
	}
	_ = w.Flush()
	fmt.Printf("%d of %d open\n", list.Remaining(), len(list.Todos))
}

func printSession(info goTodo.SessionInfo) {
	if !info.Authenticated {
		fmt.Println("Not signed in.")
		return
	}
	fmt.Printf("Email:   %s\n", info.Email)
	fmt.Printf("Role:    %s\n", info.Role)
	if !info.ExpiresAt.IsZero() {
		state := "valid"
		if info.Expired(time.Now()) {
			state = "expired, refreshed on next request"
		}
		fmt.Printf("Expires: %s (%s)\n", info.ExpiresAt.Local().Format(time.RFC3339), state)
	}
	fmt.Printf("Refresh: %t\n", info.HasRefreshToken)
}

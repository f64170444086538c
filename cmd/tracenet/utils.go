// Copyright (c) 2025 The TraceNet developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"runtime"
	"syscall"

	isatty "github.com/mattn/go-isatty"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/gridrun/tracenet/eventdb"
	"github.com/gridrun/tracenet/log"
	"github.com/gridrun/tracenet/lvldb"
)

func fatal(args ...interface{}) {
	fmt.Fprint(os.Stderr, "Fatal: ")
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(1)
}

func fatalf(format string, args ...interface{}) {
	fatal(fmt.Sprintf(format, args...))
}

func defaultDataDir() string {
	// Try to place the data folder in the user's home dir
	if home := homeDir(); home != "" {
		switch runtime.GOOS {
		case "darwin":
			return filepath.Join(home, "Library", "Application Support", "TraceNet")
		case "windows":
			return filepath.Join(home, "AppData", "Roaming", "TraceNet")
		default:
			return filepath.Join(home, ".tracenet")
		}
	}
	return ""
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home
	}
	if u, err := user.Current(); err == nil {
		return u.HomeDir
	}
	return ""
}

func initLogger(ctx *cli.Context) *slog.LevelVar {
	verbosity := ctx.Int(verbosityFlag.Name)
	levelVar := new(slog.LevelVar)
	levelVar.Set(log.VerbosityToLevel(verbosity))

	if isatty.IsTerminal(os.Stderr.Fd()) {
		log.SetDefaultHandler(log.NewTerminalHandlerWithLevel(os.Stderr, levelVar, true))
	} else {
		log.SetDefaultHandler(log.JSONHandlerWithLevel(os.Stderr, levelVar))
	}
	return levelVar
}

func openMainDB(dataDir string) *lvldb.LevelDB {
	if dataDir == "" {
		db, err := lvldb.NewMem()
		if err != nil {
			fatalf("open in-memory database: %v", err)
		}
		return db
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		fatalf("create data dir at '%v': %v", dataDir, err)
	}
	dir := filepath.Join(dataDir, "main.db")
	db, err := lvldb.New(dir, lvldb.Options{})
	if err != nil {
		fatalf("open main database at '%v': %v", dir, err)
	}
	return db
}

func openEventDB(dataDir string) *eventdb.EventDB {
	if dataDir == "" {
		db, err := eventdb.NewMem()
		if err != nil {
			fatalf("open in-memory event database: %v", err)
		}
		return db
	}
	path := filepath.Join(dataDir, "events.db")
	db, err := eventdb.New(path)
	if err != nil {
		fatalf("open event database at '%v': %v", path, err)
	}
	return db
}

func handleExitSignal() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		close(done)
	}()
	return done
}

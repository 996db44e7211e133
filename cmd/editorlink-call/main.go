// Copyright 2026 The Editorlink Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/editorlink-project/editorlink/lib/config"
	"github.com/editorlink-project/editorlink/lib/endpoint"
	"github.com/editorlink-project/editorlink/lib/protocol"
	"github.com/editorlink-project/editorlink/lib/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		socketPath  string
		projectRoot string
		runDir      string
		authToken   string
		timeout     time.Duration
		showVersion bool
	)

	pflag.StringVar(&socketPath, "socket", "", "explicit bridge socket path")
	pflag.StringVar(&projectRoot, "project-root", "", "project directory the bridge was started for (default: current directory)")
	pflag.StringVar(&runDir, "run-dir", "", "socket directory (default: XDG_RUNTIME_DIR or the temp directory)")
	pflag.StringVar(&authToken, "auth", os.Getenv("EDITORLINK_AUTH_TOKEN"), "session token for bridges running with auth required")
	pflag.DurationVar(&timeout, "timeout", 45*time.Second, "overall deadline for connect, write, and read")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("editorlink-call %s\n", version.Info())
		return 0
	}

	arguments := pflag.Args()
	if len(arguments) < 1 || len(arguments) > 2 {
		fmt.Fprintf(os.Stderr, "usage: editorlink-call [flags] <method> [params-json|-]\n")
		pflag.PrintDefaults()
		return 1
	}
	method := arguments[0]

	var params json.RawMessage
	if len(arguments) == 2 {
		raw := arguments[1]
		if raw == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: reading params from stdin: %v\n", err)
				return 1
			}
			raw = string(data)
		}
		if !json.Valid([]byte(raw)) {
			fmt.Fprintf(os.Stderr, "error: params is not valid JSON\n")
			return 1
		}
		params = json.RawMessage(raw)
	}

	if socketPath == "" {
		resolved, err := resolveSocket(projectRoot, runDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		socketPath = resolved
	}

	response, err := call(socketPath, timeout, protocol.Request{
		Method: method,
		Params: params,
		Auth:   authToken,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	output, err := json.Marshal(response)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: rendering response: %v\n", err)
		return 1
	}
	fmt.Println(string(output))

	if response.IsError() {
		return 1
	}
	return 0
}

// resolveSocket derives the socket path exactly the way the bridge
// does, honoring the same configuration sources so both sides land on
// the same endpoint.
func resolveSocket(projectRoot, runDir string) (string, error) {
	configuration, err := config.Load("")
	if err != nil {
		return "", err
	}

	seed := configuration.EndpointSeed
	if seed == "" {
		if projectRoot == "" {
			projectRoot, err = os.Getwd()
			if err != nil {
				return "", fmt.Errorf("determining project root: %w", err)
			}
		}
		seed, err = filepath.Abs(projectRoot)
		if err != nil {
			return "", fmt.Errorf("resolving project root: %w", err)
		}
	}

	if runDir == "" {
		runDir = configuration.RunDir
	}
	if runDir == "" {
		runDir = endpoint.DefaultRunDir()
	}
	return endpoint.SocketPath(runDir, endpoint.Name(seed)), nil
}

// call performs one request-response cycle on a fresh connection.
func call(socketPath string, timeout time.Duration, request protocol.Request) (protocol.Response, error) {
	connection, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("connecting to bridge at %s: %w", socketPath, err)
	}
	defer connection.Close()
	if err := connection.SetDeadline(time.Now().Add(timeout)); err != nil {
		return protocol.Response{}, fmt.Errorf("setting deadline: %w", err)
	}

	line, err := json.Marshal(request)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("encoding request: %w", err)
	}
	if _, err := connection.Write(append(line, '\n')); err != nil {
		return protocol.Response{}, fmt.Errorf("writing request: %w", err)
	}

	reader := bufio.NewReaderSize(connection, 64*1024)
	responseLine, err := reader.ReadBytes('\n')
	if err != nil {
		return protocol.Response{}, fmt.Errorf("reading response: %w", err)
	}

	var response protocol.Response
	if err := json.Unmarshal(responseLine, &response); err != nil {
		return protocol.Response{}, fmt.Errorf("decoding response: %w", err)
	}
	return response, nil
}

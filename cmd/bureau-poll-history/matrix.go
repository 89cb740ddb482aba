// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/bureau-foundation/pollhistory/lib/config"
	"github.com/bureau-foundation/pollhistory/lib/ref"
	"github.com/bureau-foundation/pollhistory/lib/secret"
	"github.com/bureau-foundation/pollhistory/messaging"
)

// connectMatrix authenticates against the configured homeserver and
// resolves the configured room. With a token file the token is used
// as is; without one the password is prompted for on the terminal.
// The returned session must be closed by the caller.
func connectMatrix(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*messaging.DirectSession, ref.RoomID, error) {
	if err := cfg.RequireMatrix(); err != nil {
		return nil, ref.RoomID{}, invalid("%w", err).
			withHint("Set matrix.homeserver, matrix.user_id and matrix.room in the config file or pass --homeserver, --user and --room. Use --file or --demo to run without a homeserver.")
	}
	userID, err := ref.ParseUserID(cfg.Matrix.UserID)
	if err != nil {
		return nil, ref.RoomID{}, invalid("matrix.user_id: %w", err)
	}

	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.Matrix.Homeserver,
		Logger:        logger,
	})
	if err != nil {
		return nil, ref.RoomID{}, err
	}

	var session *messaging.DirectSession
	if cfg.Matrix.TokenFile != "" {
		token, err := secret.ReadTokenFile(cfg.Matrix.TokenFile)
		if err != nil {
			return nil, ref.RoomID{}, invalid("reading token file: %w", err)
		}
		session = client.SessionFromToken(userID, token)
	} else {
		password, err := readPassword(userID)
		if err != nil {
			return nil, ref.RoomID{}, err
		}
		session, err = client.Login(ctx, userID.String(), password)
		password.Close()
		if err != nil {
			return nil, ref.RoomID{}, err
		}
	}

	verified, err := session.WhoAmI(ctx)
	if err != nil {
		session.Close()
		return nil, ref.RoomID{}, fmt.Errorf("session verification failed: %w", err)
	}
	if verified != userID {
		logger.Warn("access token belongs to a different user",
			"configured", userID,
			"actual", verified,
		)
	}

	roomID, err := resolveRoom(ctx, session, cfg.Matrix.Room)
	if err != nil {
		session.Close()
		return nil, ref.RoomID{}, err
	}
	return session, roomID, nil
}

func resolveRoom(ctx context.Context, session messaging.Session, room string) (ref.RoomID, error) {
	if !strings.HasPrefix(room, "#") {
		return ref.ParseRoomID(room)
	}
	alias, err := ref.ParseRoomAlias(room)
	if err != nil {
		return ref.RoomID{}, err
	}
	roomID, err := session.ResolveAlias(ctx, alias)
	if err != nil {
		return ref.RoomID{}, fmt.Errorf("resolving %s: %w", alias, err)
	}
	return roomID, nil
}

// readPassword prompts for the account password with echo disabled.
func readPassword(userID ref.UserID) (*secret.Buffer, error) {
	stdinFileDescriptor := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFileDescriptor) {
		return nil, invalid("no terminal available for interactive password prompt").
			withHint("Set matrix.token_file or pass --token-file.")
	}

	fmt.Fprintf(os.Stderr, "Password for %s: ", userID)
	passwordBytes, err := term.ReadPassword(stdinFileDescriptor)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}

	buffer, err := secret.NewFromBytes(passwordBytes)
	if err != nil {
		clear(passwordBytes)
		return nil, err
	}
	return buffer, nil
}

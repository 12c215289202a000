// Package cli implements zotp's command-line subcommands.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/zarlcorp/core/pkg/zcrypto"
	"github.com/zarlcorp/core/pkg/zfilesystem"
	"github.com/zarlcorp/core/pkg/zstore"
	"github.com/zarlcorp/zotp/internal/batch"
	"github.com/zarlcorp/zotp/internal/config"
	"github.com/zarlcorp/zotp/internal/credential"
	"github.com/zarlcorp/zotp/internal/qr"
	"github.com/zarlcorp/zotp/internal/refresh"
	"github.com/zarlcorp/zotp/internal/store"
	"github.com/zarlcorp/zotp/internal/vault"
	"golang.org/x/term"
)

// ErrUsage is returned when a subcommand is called with bad arguments.
var ErrUsage = errors.New("usage")

// ReadPassword prompts for a password on w and reads it without echo.
func ReadPassword(prompt string, w io.Writer) (string, error) {
	fmt.Fprint(w, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

// ReadNewPassword prompts for a new password with confirmation.
func ReadNewPassword(w io.Writer) (string, error) {
	pass, err := ReadPassword("master password: ", w)
	if err != nil {
		return "", err
	}
	confirm, err := ReadPassword("confirm password: ", w)
	if err != nil {
		return "", err
	}
	if pass != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return pass, nil
}

// IsFirstRun checks whether the encrypted store has been initialized.
func IsFirstRun(dir string) bool {
	_, err := os.Stat(dir + "/salt")
	return err != nil
}

// OpenZstore opens the encrypted slot store in dir with password.
func OpenZstore(dir string, password []byte) (*zstore.Store, *store.ZstoreSlots, error) {
	defer zcrypto.Erase(password)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}

	fsys := zfilesystem.NewOSFileSystem(dir)
	s, err := zstore.Open(fsys, password)
	if err != nil {
		return nil, nil, err
	}

	slots, err := store.NewZstoreSlots(s)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return s, slots, nil
}

// OpenBolt opens the unencrypted slot store in dir.
func OpenBolt(dir string) (*store.BoltSlots, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return store.OpenBoltSlots(filepath.Join(dir, "zotp.db"))
}

// OpenSlots opens the configured backend, prompting for the master password
// when it is encrypted. The returned func releases the backend.
func OpenSlots(cfg config.Config) (store.Slots, func(), error) {
	switch cfg.Backend {
	case config.BackendBolt:
		b, err := OpenBolt(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { b.Close() }, nil

	default:
		var pass string
		var err error
		if IsFirstRun(cfg.DataDir) {
			pass, err = ReadNewPassword(os.Stderr)
		} else {
			pass, err = ReadPassword("master password: ", os.Stderr)
		}
		if err != nil {
			return nil, nil, err
		}

		s, slots, err := OpenZstore(cfg.DataDir, []byte(pass))
		if err != nil {
			return nil, nil, err
		}
		return slots, func() { s.Close() }, nil
	}
}

// OpenVault opens the configured backend and loads the vault. Load and
// migration notices are printed to stderr.
func OpenVault(cfg config.Config) (*vault.Vault, func(), error) {
	slots, closeFn, err := OpenSlots(cfg)
	if err != nil {
		return nil, nil, err
	}

	v, err := vault.Open(slots, refresh.TOTP{}, vault.WithDefaults(batch.ParseDefaults(cfg.Digits, cfg.Period)))
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	printNotices(os.Stderr, v)
	return v, closeFn, nil
}

// CmdAdd adds keys from args, or from stdin when no text is given.
func CmdAdd(w io.Writer, stdin io.Reader, v *vault.Vault, args []string) error {
	digits, args := flagValue(args, "--digits")
	period, args := flagValue(args, "--period")
	if digits != "" || period != "" {
		d := v.Defaults()
		v.SetDefaults(orString(digits, strconv.Itoa(d.Digits)), orString(period, strconv.Itoa(d.Period)))
	}

	text := strings.Join(args, "\n")
	if text == "" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		text = string(b)
	}

	res := v.AddBatch(text)
	for _, f := range res.Failures {
		fmt.Fprintf(w, "  line %d: %q rejected\n", f.Line, f.Raw)
	}
	printNotices(w, v)
	return nil
}

// listEntry is the JSON shape printed by list --json.
type listEntry struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Code       string `json:"code"`
	UpdatingIn int    `json:"updating_in"`
	Digits     int    `json:"digits"`
	Period     int    `json:"period"`
	Algorithm  string `json:"algorithm"`
}

// CmdList prints every key with its current code.
func CmdList(w io.Writer, v *vault.Vault, args []string) error {
	recs := v.Records()

	if hasFlag(args, "--json") {
		out := make([]listEntry, 0, len(recs))
		for i, c := range recs {
			out = append(out, listEntry{
				ID:         c.ID,
				Name:       credential.DisplayName(c, i),
				Code:       c.Token,
				UpdatingIn: c.UpdatingIn,
				Digits:     c.Digits,
				Period:     c.Period,
				Algorithm:  c.Algorithm,
			})
		}
		return printJSON(w, out)
	}

	if len(recs) == 0 {
		fmt.Fprintln(w, "no saved keys")
		return nil
	}

	printTable(w, recs)
	return nil
}

// CmdWatch reprints the code table every second until ctx is cancelled.
func CmdWatch(ctx context.Context, w io.Writer, v *vault.Vault, sched *refresh.Scheduler) error {
	err := sched.Run(ctx, func(now time.Time) {
		v.Tick(now)
		fmt.Fprint(w, "\033[H\033[2J")
		fmt.Fprintf(w, "  zotp  %s\n\n", now.Format("15:04:05"))
		if v.Len() == 0 {
			fmt.Fprintln(w, "  no saved keys")
			return
		}
		printTable(w, v.Records())
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// CmdRename renames a key.
func CmdRename(w io.Writer, v *vault.Vault, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: zotp rename <id> <name>", ErrUsage)
	}
	id, err := resolve(v, args[0])
	if err != nil {
		return err
	}

	if err := v.Rename(id, strings.Join(args[1:], " ")); err != nil {
		return err
	}
	c, _ := v.Get(id)
	fmt.Fprintf(w, "renamed %s to %q\n", shortID(id), c.Name)
	printNotices(w, v)
	return nil
}

// CmdRemove deletes one key.
func CmdRemove(w io.Writer, v *vault.Vault, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: zotp rm <id>", ErrUsage)
	}
	id, err := resolve(v, args[0])
	if err != nil {
		return err
	}

	if err := v.Remove(id); err != nil {
		return err
	}
	printNotices(w, v)
	return nil
}

// CmdClear deletes every key. It refuses without --yes.
func CmdClear(w io.Writer, v *vault.Vault, args []string) error {
	n, err := v.Clear(hasFlag(args, "--yes"))
	if errors.Is(err, vault.ErrNotConfirmed) {
		return fmt.Errorf("%w: zotp clear --yes (this cannot be undone)", ErrUsage)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "removed %d keys\n", n)
	printNotices(w, v)
	return nil
}

// CmdCopy copies the current code of a key to the clipboard.
func CmdCopy(w io.Writer, v *vault.Vault, cb vault.Clipboard, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: zotp copy <id>", ErrUsage)
	}
	id, err := resolve(v, args[0])
	if err != nil {
		return err
	}

	code, err := v.Copy(id, cb)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "code %s copied\n", code)
	return nil
}

// CmdQR prints a key's QR code, or writes it as PNG with --png <file>.
func CmdQR(w io.Writer, v *vault.Vault, args []string) error {
	file, args := flagValue(args, "--png")
	if len(args) != 1 {
		return fmt.Errorf("%w: zotp qr <id> [--png file]", ErrUsage)
	}
	id, err := resolve(v, args[0])
	if err != nil {
		return err
	}

	c, _ := v.Get(id)
	uri, err := qr.URI(c)
	if err != nil {
		return err
	}

	if file != "" {
		b, err := qr.PNG(uri, qr.DefaultSize)
		if err != nil {
			return err
		}
		if err := os.WriteFile(file, b, 0o600); err != nil {
			return fmt.Errorf("write %s: %w", file, err)
		}
		fmt.Fprintf(w, "wrote %s\n", file)
		return nil
	}

	s, err := qr.Terminal(uri)
	if err != nil {
		return err
	}
	fmt.Fprint(w, s)
	fmt.Fprintln(w, uri)
	return nil
}

// resolve maps a full id, a 1-based position or a unique id prefix to an id.
func resolve(v *vault.Vault, ref string) (string, error) {
	if _, ok := v.Get(ref); ok {
		return ref, nil
	}

	recs := v.Records()
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(recs) {
		return recs[n-1].ID, nil
	}

	var match string
	for _, c := range recs {
		if strings.HasPrefix(c.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("%q matches more than one key", ref)
			}
			match = c.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("%q: %w", ref, credential.ErrNotFound)
	}
	return match, nil
}

func printTable(w io.Writer, recs []credential.Credential) {
	for i, c := range recs {
		fmt.Fprintf(w, "  %-3d %-8s %-24s %-12s %3ds\n",
			i+1,
			shortID(c.ID),
			truncate(credential.DisplayName(c, i), 24),
			c.Token,
			c.UpdatingIn,
		)
	}
}

func printNotices(w io.Writer, v *vault.Vault) {
	for _, n := range v.Notices() {
		if n.Err {
			fmt.Fprintf(w, "zotp: %s\n", n.Message)
			continue
		}
		fmt.Fprintln(w, n.Message)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if strings.EqualFold(a, flag) {
			return true
		}
	}
	return false
}

// flagValue extracts "--name value" or "--name=value" from args and
// returns the value and the remaining args.
func flagValue(args []string, flag string) (string, []string) {
	var rest []string
	var val string
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case strings.EqualFold(a, flag) && i+1 < len(args):
			val = args[i+1]
			i++
		case strings.HasPrefix(strings.ToLower(a), flag+"="):
			val = a[len(flag)+1:]
		default:
			rest = append(rest, a)
		}
	}
	return val, rest
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

func orString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jimger/wizz-aycf-route-finder/internal/cache"
	"github.com/jimger/wizz-aycf-route-finder/internal/flight"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage cached searches",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached searches",
	Args:  cobra.NoArgs,
	RunE:  runCacheList,
}

var cacheShowCmd = &cobra.Command{
	Use:   "show KEY",
	Short: "Print the flights cached under KEY (e.g. LTN-2025-03-14)",
	Args:  cobra.ExactArgs(1),
	RunE:  runCacheShow,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached search and return candidate set",
	Args:  cobra.NoArgs,
	RunE:  runCacheClear,
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove expired cache entries",
	Args:  cobra.NoArgs,
	RunE:  runCachePurge,
}

var cacheSessionResetCmd = &cobra.Command{
	Use:   "session-reset",
	Short: "Forget the captured routes, endpoint and headers",
	Args:  cobra.NoArgs,
	RunE:  runCacheSessionReset,
}

func init() {
	cacheCmd.AddCommand(cacheListCmd, cacheShowCmd, cacheClearCmd, cachePurgeCmd, cacheSessionResetCmd)
}

// openApp builds the run for commands that take no ORIGIN.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := InitConfigWithError("")
	if err != nil {
		return nil, err
	}
	return newApp(cfg, cmd.ErrOrStderr())
}

func runCacheList(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	keys, listErr := a.cache.ResultKeys()
	if listErr != nil {
		return listErr
	}

	w := cmd.OutOrStdout()
	if last, ok := a.lastOrigin(); ok {
		fmt.Fprintf(w, "Last airport: %s\n", last)
	}
	if len(keys) == 0 {
		fmt.Fprintln(w, "No cached searches.")
		return nil
	}

	t := newTable("Key", "Origin", "Date", "Flights", "Returns", "Age")
	now := a.clock.Now()
	for _, key := range keys {
		entry, ok := a.cache.GetEntry(key)
		if !ok {
			continue
		}
		var set flight.SearchResultSet
		if err := json.Unmarshal(entry.Payload, &set); err != nil {
			continue
		}
		origin, date, _ := cache.ParseResultKey(key)
		returns, _ := a.cache.ReturnKeys(key)
		t.add(key, origin, dayLabel(date), fmt.Sprint(set.Len()), fmt.Sprint(len(returns)), age(now.Sub(entry.StoredAt)))
	}
	t.render(w)
	return nil
}

func runCacheShow(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	set, err := cachedResults(a, args[0])
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Flights from %s on %s\n", stationLabel(a, set.Origin()), dayLabel(set.Date()))
	if set.IsEmpty() {
		fmt.Fprintln(w, "No flights found.")
		return nil
	}
	renderLegs(w, set.Legs())
	fmt.Fprintf(w, "%d flights\n", set.Len())
	return nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	removed, clearErr := a.cache.ClearResults()
	if clearErr != nil {
		return clearErr
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached entries\n", removed)
	return nil
}

func runCachePurge(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	purged, purgeErr := a.cache.PurgeExpired()
	if purgeErr != nil {
		return purgeErr
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired entries\n", a.purged+purged)
	return nil
}

func runCacheSessionReset(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if resetErr := a.resolver.Invalidate(); resetErr != nil {
		return resetErr
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Session data cleared")
	return nil
}

var errNotCached = errors.New("no cached search under that key")

// cachedResults loads the result set stored under a result key.
func cachedResults(a *app, key string) (*flight.SearchResultSet, error) {
	if !cache.IsResultKey(key) {
		return nil, fmt.Errorf("%q is not a search key, expected ORIGIN-YYYY-MM-DD", key)
	}
	set, ok := cache.GetAs[flight.SearchResultSet](a.cache, key)
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, errNotCached)
	}
	return &set, nil
}

package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"swrfmods/internal/catalog"
	"swrfmods/internal/library"
	"swrfmods/internal/prefs"
	"swrfmods/internal/submit"
	"swrfmods/internal/visitor"
	"swrfmods/pkg/models"
)

const defaultBaseURL = "http://localhost:8080"

type tokenData struct {
	Token string `json:"token"`
}

type savedResponse struct {
	BackTo  string         `json:"back_to"`
	LastEra string         `json:"last_era"`
	Total   int            `json:"total"`
	Items   []catalog.Card `json:"items"`
}

type toggleResponse struct {
	ID       models.ModID   `json:"id"`
	Saved    bool           `json:"saved"`
	SavedIDs []models.ModID `json:"saved_ids"`
}

type app struct {
	baseURL   string
	tokenPath string
	client    *http.Client
	store     *prefs.FileStore
	loader    *catalog.Loader
	logger    *zap.Logger
}

func main() {
	global := flag.NewFlagSet("swrfmods", flag.ExitOnError)
	baseURL := global.String("api", defaultBaseURL, "site base URL")
	tokenPath := global.String("token", defaultTokenPath(), "visitor token file path")
	statePath := global.String("state", prefs.DefaultFilePath(), "local preference file")
	verbose := global.Bool("v", false, "log dataset and network warnings")
	if err := global.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	logger := zap.NewNop()
	if *verbose {
		logger, _ = zap.NewDevelopment()
	}

	a := &app{
		baseURL:   strings.TrimRight(*baseURL, "/"),
		tokenPath: *tokenPath,
		client:    &http.Client{Timeout: 15 * time.Second},
		store:     prefs.NewFileStore(*statePath),
		loader:    catalog.NewLoader(catalog.NewHTTPSource(*baseURL), logger),
		logger:    logger,
	}

	ctx := context.Background()
	cmd := args[0]
	sub := ""
	if len(args) > 1 {
		sub = args[1]
	}
	rest := []string{}
	if len(args) > 2 {
		rest = args[2:]
	}

	switch cmd {
	case "eras":
		a.handleEras(ctx)
	case "mods":
		a.handleMods(ctx, args[1:])
	case "saved":
		a.handleSaved(ctx, sub, rest)
	case "submit":
		a.handleSubmit(ctx, args[1:])
	case "visitor":
		a.handleVisitor(ctx, sub)
	case "sync":
		a.handleSync(sub, rest)
	case "export":
		a.handleExport(ctx, sub, rest)
	default:
		printUsage()
		os.Exit(1)
	}
}

func (a *app) handleEras(ctx context.Context) {
	last := prefs.LastVisitedEra(ctx, a.store)
	for _, e := range catalog.Eras {
		marker := " "
		if e.Slug == last {
			marker = "*"
		}
		fmt.Printf("%s %-9s %s\n", marker, e.Slug, e.Title)
	}
}

func (a *app) handleMods(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("mods", flag.ExitOnError)
	era := fs.String("era", catalog.EraAll, "era: all|prequel|original|sequel|other")
	typ := fs.String("type", catalog.AllTypes, "type filter")
	query := fs.String("q", "", "title search")
	sort := fs.String("sort", string(catalog.SortSubsDesc), "subs-desc|subs-asc|date-desc|date-asc")
	view := fs.String("view", string(catalog.ViewCompact), "compact|list")
	asJSON := fs.Bool("json", false, "print JSON")
	_ = fs.Parse(args)

	saved := a.mustSaved(ctx)
	page := catalog.NewPage(ctx, strings.ToLower(*era), a.loader, a.store, a.logger)
	defer page.Close()
	page.Query = catalog.Query{Type: *typ, Search: *query, Sort: catalog.SortOption(*sort)}
	page.View = catalog.ParseViewMode(*view)

	if err := page.Load(); err != nil {
		log.Fatalf("load era: %v", err)
	}
	cards := page.Cards(saved.Has)

	if *asJSON {
		printJSON(map[string]any{"era": page.Era, "types": page.Types(), "total": len(cards), "items": cards})
		return
	}
	fmt.Printf("types: %s\n", strings.Join(append([]string{catalog.AllTypes}, page.Types()...), ", "))
	for _, c := range cards {
		printCard(c)
	}
	fmt.Printf("%d mods\n", len(cards))
}

func (a *app) handleSaved(ctx context.Context, sub string, args []string) {
	fs := flag.NewFlagSet("saved "+sub, flag.ExitOnError)
	id := fs.String("id", "", "mod id")
	remote := fs.Bool("remote", false, "use the server-side saved set of the stored visitor token")
	_ = fs.Parse(args)

	switch sub {
	case "list":
		if *remote {
			var resp savedResponse
			if err := doJSON(ctx, a.client, http.MethodGet, a.baseURL+"/api/saved", mustToken(a.tokenPath), nil, &resp); err != nil {
				log.Fatalf("list failed: %v", err)
			}
			for _, c := range resp.Items {
				printCard(c)
			}
			fmt.Printf("%d saved, back to %s\n", resp.Total, resp.BackTo)
			return
		}

		saved := a.mustSaved(ctx)
		cards := library.SavedCards(a.loader.Load(ctx), saved)
		for _, c := range cards {
			printCard(c)
		}
		fmt.Printf("%d saved, back to /era/%s\n", len(cards), prefs.LastVisitedEra(ctx, a.store))
	case "toggle":
		if *id == "" {
			log.Fatal("mod id is required")
		}
		if *remote {
			var resp toggleResponse
			endpoint := a.baseURL + "/api/saved/" + url.PathEscape(*id) + "/toggle"
			if err := doJSON(ctx, a.client, http.MethodPost, endpoint, mustToken(a.tokenPath), nil, &resp); err != nil {
				log.Fatalf("toggle failed: %v", err)
			}
			printToggle(resp.ID, resp.Saved, len(resp.SavedIDs))
			return
		}

		saved := a.mustSaved(ctx)
		now, err := saved.Toggle(ctx, models.ModID(*id))
		if err != nil {
			log.Fatalf("toggle failed: %v", err)
		}
		printToggle(models.ModID(*id), now, saved.Len())
	default:
		log.Fatal("usage: swrfmods saved <list|toggle> [--id ID] [--remote]")
	}
}

func (a *app) handleSubmit(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	link := fs.String("link", "", "Steam Workshop link")
	_ = fs.Parse(args)

	form := submit.NewForm(ctx, a.baseURL, a.store, submit.WithClient(a.client), submit.WithLogger(a.logger))
	defer form.Close()

	if st := form.Status(); st.CoolingDown {
		log.Fatalf("please wait %s before submitting again", time.Until(st.Until).Round(time.Second))
	}
	if err := form.Submit(ctx, *link); err != nil {
		log.Fatal(err)
	}
	fmt.Println("✅ submitted, thank you")
}

func (a *app) handleVisitor(ctx context.Context, sub string) {
	switch sub {
	case "new":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/eras", nil)
		if err != nil {
			log.Fatalf("build request: %v", err)
		}
		resp, err := a.client.Do(req)
		if err != nil {
			log.Fatalf("request failed: %v", err)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		token := resp.Header.Get(visitor.TokenHeader)
		if err := saveToken(a.tokenPath, token); err != nil {
			log.Fatalf("save token: %v", err)
		}
		fmt.Println("✅ new visitor token saved")
	case "show":
		fmt.Println(mustToken(a.tokenPath))
	case "forget":
		if err := clearToken(a.tokenPath); err != nil {
			log.Fatalf("forget failed: %v", err)
		}
		fmt.Println("✅ visitor token removed")
	default:
		log.Fatal("usage: swrfmods visitor <new|show|forget>")
	}
}

func (a *app) handleExport(ctx context.Context, sub string, args []string) {
	fs := flag.NewFlagSet("export "+sub, flag.ExitOnError)
	era := fs.String("era", catalog.EraAll, "era to export")
	out := fs.String("out", "", "output file")
	_ = fs.Parse(args)

	mods, err := catalog.SelectEra(a.loader.Load(ctx), *era)
	if err != nil {
		log.Fatalf("export: %v", err)
	}

	switch sub {
	case "json":
		path := *out
		if path == "" {
			path = "exports/mods.json"
		}
		if err := writeJSON(path, mods); err != nil {
			log.Fatalf("export json: %v", err)
		}
		fmt.Printf("✅ exported %d mods to %s\n", len(mods), path)
	case "csv":
		path := *out
		if path == "" {
			path = "exports/mods.csv"
		}
		if err := writeCSV(path, mods); err != nil {
			log.Fatalf("export csv: %v", err)
		}
		fmt.Printf("✅ exported %d mods to %s\n", len(mods), path)
	default:
		log.Fatal("usage: swrfmods export <json|csv> [--era ERA] [--out PATH]")
	}
}

func (a *app) mustSaved(ctx context.Context) *prefs.SavedStore {
	saved, err := prefs.LoadSavedStore(ctx, a.store)
	if err != nil {
		log.Fatalf("read saved mods: %v", err)
	}
	return saved
}

func printCard(c catalog.Card) {
	mark := " "
	if c.Saved {
		mark = "★"
	}
	line := fmt.Sprintf("%s %-10s %-40s %7d subs  [%s]", mark, c.ID, c.Title, c.CurrentSubscribers, strings.Join(c.DisplayTypes, ", "))
	if c.Published != "" {
		line += "  " + c.Published
	}
	fmt.Println(line)
}

func printToggle(id models.ModID, saved bool, total int) {
	if saved {
		fmt.Printf("★ saved %s (%d saved)\n", id, total)
		return
	}
	fmt.Printf("removed %s (%d saved)\n", id, total)
}

func writeJSON(path string, items []models.Mod) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func writeCSV(path string, items []models.Mod) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{
		"id", "title", "author", "link", "era", "types", "current_subscribers", "unique_visitors", "date",
	}); err != nil {
		return err
	}
	for _, item := range items {
		if err := writer.Write([]string{
			string(item.ID),
			item.Title,
			item.Author,
			item.Link,
			item.Era,
			strings.Join(item.NormalizedTypes, ","),
			strconv.Itoa(item.CurrentSubscribers),
			strconv.Itoa(item.UniqueVisitors),
			item.Date,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func doJSON(ctx context.Context, client *http.Client, method, endpoint, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s failed: %s", method, endpoint, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("json: %v", err)
	}
	fmt.Println(string(b))
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./.swrfmods-token.json"
	}
	return filepath.Join(home, ".swrfmods", "token.json")
}

func saveToken(path, token string) error {
	if token == "" {
		return errors.New("empty token")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tokenData{Token: token}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func readToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var td tokenData
	if err := json.Unmarshal(data, &td); err != nil {
		return "", err
	}
	return strings.TrimSpace(td.Token), nil
}

func mustToken(path string) string {
	token, err := readToken(path)
	if err != nil {
		log.Fatalf("visitor token not found, run `swrfmods visitor new`: %v", err)
	}
	if token == "" {
		log.Fatal("visitor token empty, run `swrfmods visitor new`")
	}
	return token
}

func clearToken(path string) error {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

func printUsage() {
	fmt.Println("swrfmods [--api URL] <command> [subcommand] [flags]")
	fmt.Println("commands:")
	fmt.Println("  eras")
	fmt.Println("  mods [--era] [--type] [--q] [--sort] [--view] [--json]")
	fmt.Println("  saved list|toggle [--remote]")
	fmt.Println("  submit --link URL")
	fmt.Println("  visitor new|show|forget")
	fmt.Println("  sync listen|ws")
	fmt.Println("  export json|csv")
}

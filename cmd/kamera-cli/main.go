// Command kamera-cli lists and moderates camera reports directly against the
// configured store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/appminic/kamera/internal/config"
	"github.com/appminic/kamera/internal/logging"
	"github.com/appminic/kamera/internal/models"
	"github.com/appminic/kamera/internal/repository"
	"github.com/appminic/kamera/internal/store"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: kamera-cli <command> [flags]

commands:
  list   [-type SPEED|RED_LIGHT|POLICE] [-limit n]
  report -type T -lat LAT -lng LNG [-by NAME] [-desc TEXT]
  vote   -id ID -dir up|down
  flag   -id ID`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	log := logging.Setup(cfg.Logging.Level)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := repository.Open(ctx, cfg.Store)
	if err != nil {
		logging.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	client := store.NewClient(db, log)

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "list":
		err = list(ctx, db, args)
	case "report":
		err = report(ctx, client, args)
	case "vote":
		err = vote(ctx, client, args)
	case "flag":
		err = flagCamera(ctx, client, args)
	default:
		usage()
	}
	if err != nil {
		logging.Fatalf("%s: %v", cmd, err)
	}
}

func list(ctx context.Context, repo repository.CameraRepository, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	typeName := fs.String("type", "", "camera type or label")
	limit := fs.Int("limit", 50, "max reports")
	_ = fs.Parse(args)

	filter := repository.Filter{Limit: *limit}
	if *typeName != "" {
		t, err := models.ParseCameraType(*typeName)
		if err != nil {
			return err
		}
		filter.Type = &t
	}

	reports, err := repo.List(ctx, filter)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tLAT\tLNG\tUP\tDOWN\tFLAGS\tREPORTED BY\tWHEN")
	for _, r := range reports {
		fmt.Fprintf(w, "%s\t%s\t%.5f\t%.5f\t%d\t%d\t%d\t%s\t%s\n",
			r.ID, r.Type.Label(), r.Latitude, r.Longitude,
			r.ThumbsUp, r.ThumbsDown, r.Flags, r.ReportedBy,
			r.Timestamp.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func report(ctx context.Context, client *store.Client, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	typeName := fs.String("type", "", "camera type or label")
	lat := fs.Float64("lat", 0, "latitude")
	lng := fs.Float64("lng", 0, "longitude")
	by := fs.String("by", "", "reporter name")
	desc := fs.String("desc", "", "description")
	_ = fs.Parse(args)
	if err := requireFlags(fs, "type", "lat", "lng"); err != nil {
		return err
	}

	t, err := models.ParseCameraType(*typeName)
	if err != nil {
		return err
	}
	saved, err := client.Create(ctx, models.NewCameraReport(t,
		models.Coordinates{Latitude: *lat, Longitude: *lng}, *by, *desc))
	if err != nil {
		return err
	}
	fmt.Println(saved.ID)
	return nil
}

func vote(ctx context.Context, client *store.Client, args []string) error {
	fs := flag.NewFlagSet("vote", flag.ExitOnError)
	id := fs.String("id", "", "camera ID")
	dir := fs.String("dir", "up", "up or down")
	_ = fs.Parse(args)
	if err := requireFlags(fs, "id"); err != nil {
		return err
	}

	d, err := models.ParseVoteDirection(*dir)
	if err != nil {
		return err
	}
	return client.IncrementVote(ctx, *id, d)
}

func flagCamera(ctx context.Context, client *store.Client, args []string) error {
	fs := flag.NewFlagSet("flag", flag.ExitOnError)
	id := fs.String("id", "", "camera ID")
	_ = fs.Parse(args)
	if err := requireFlags(fs, "id"); err != nil {
		return err
	}

	return client.IncrementFlag(ctx, *id)
}

// requireFlags prints the flag set's usage and fails when any of names was
// not given on the command line. A zero value is not the same as absent:
// (0, 0) is a valid coordinate.
func requireFlags(fs *flag.FlagSet, names ...string) error {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var missing []string
	for _, n := range names {
		if !set[n] {
			missing = append(missing, "-"+n)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	fs.Usage()
	return fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
}

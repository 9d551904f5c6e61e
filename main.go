package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/joho/godotenv"

	"github.com/yumyai/structable/internal/util"
	"github.com/yumyai/structable/logger"
	"github.com/yumyai/structable/pkg/api"
	"github.com/yumyai/structable/pkg/availability"
	"github.com/yumyai/structable/pkg/db"
	"github.com/yumyai/structable/pkg/links"
	"github.com/yumyai/structable/pkg/model"
	"github.com/yumyai/structable/pkg/notify"
	"github.com/yumyai/structable/pkg/session"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "modernc.org/sqlite"
)

var (
	structable_api  string
	structable_data string
)

func main() {

	// Establish logger
	VERSION := "0.1.0"
	LOG_LEVEL := zapcore.InfoLevel

	if err := logger.InitLogger(LOG_LEVEL); err != nil {
		panic(err)
	}

	// Try load env
	dotenvErr := godotenv.Load()

	if dotenvErr != nil {
		logger.Warn("No .env found, using local environment")
	}

	defer logger.Sync() // Make sure that the buffered is flushed.

	species := flag.String("species", "", "species level of the metadata tree")
	chain := flag.String("chain", "", "TCR chain level (TRA or TRB)")
	mhcClass := flag.String("mhc", "", "MHC class level (MHCI or MHCII)")
	gene := flag.String("gene", "", "MHC gene level")
	epitope := flag.String("epitope", "", "epitope sequence level")
	cdr3 := flag.String("cdr3", "", "CDR3 sequence search query")
	substring := flag.Bool("substring", false, "match the CDR3 query as a substring")
	top := flag.Int("top", model.DefaultCDR3SearchOptions().Top, "number of top clusters to return")
	flag.Parse()

	source, err := buildSource()
	if err != nil {
		logger.Fatal("Unable to open structures source", zap.Error(err))
	}

	index := availability.NewIndex(source)
	resolver := links.NewResolver(index)
	ctrl := session.NewController(source, nil, notify.LogSink{})

	logger.Info("Start:", zap.String("Version", VERSION))

	ctx := context.Background()

	switch {
	case *cdr3 != "":
		if err := ctrl.Load(ctx); err != nil {
			logger.Fatal("Unable to load metadata", zap.Error(err))
		}
		ctrl.SetState(session.SearchCDR3)
		if err := ctrl.SearchCDR3(ctx, *cdr3, *substring, model.DefaultCDR3SearchOptions().Gene, *top); err != nil {
			logger.Fatal("CDR3 search failed", zap.Error(err))
		}
		result, _ := ctrl.SearchResult().Latest()
		printSearchResult(ctx, resolver, result)

	case *epitope != "":
		link := session.DeepLink{
			Species: *species, TCRChain: *chain, MHCClass: *mhcClass,
			Gene: *gene, EpitopeSeq: *epitope,
		}
		if err := ctrl.FilterByURL(ctx, link); err != nil {
			logger.Fatal("Filter failed", zap.Error(err))
		}
		epitopes, _ := ctrl.Epitopes().Latest()
		printEpitopes(ctx, resolver, epitopes)

	default:
		flag.Usage()
		os.Exit(2)
	}
}

// buildSource picks the live backend when STRUCTABLE_API is set, otherwise
// a local SQLite snapshot under STRUCTABLE_DATA.
func buildSource() (api.Source, error) {
	structable_api = os.Getenv("STRUCTABLE_API")
	if structable_api != "" {
		logger.Info("Using live backend", zap.String("API", structable_api))
		return api.NewHTTPSource(structable_api), nil
	}

	structable_data = os.Getenv("STRUCTABLE_DATA")
	if structable_data == "" {
		logger.Warn("No local environment (STRUCTABLE_DATA), using default value (./data)")
		structable_data = "./data"
	}
	if !util.DirExists(structable_data) {
		return nil, fmt.Errorf("data directory %s does not exist", structable_data)
	}

	snapshot := path.Join(structable_data, "db/structures.db")
	if !util.FileExists(snapshot) {
		return nil, fmt.Errorf("snapshot database %s does not exist", snapshot)
	}

	logger.Info("Open snapshot on", zap.String("DB_LOC", snapshot))
	return db.Open(snapshot)
}

func printEpitopes(ctx context.Context, resolver *links.Resolver, epitopes []*model.Epitope) {
	for _, ep := range epitopes {
		fmt.Printf("%s (%d clusters)\n", ep.Epitope, len(ep.Clusters))
		for _, cluster := range ep.Clusters {
			motif := resolver.ResolveMotifLink(ctx, cluster.Meta, ep.Epitope)
			structure := resolver.ResolveStructureLink(ctx, cluster.Meta, ep.Epitope)
			fmt.Printf("  %s\tsize=%d\timage=%s\tmotif=%s\tstructure=%s\n",
				cluster.ClusterID, cluster.Size, cluster.ImageURL, motif, structure)
		}
	}
}

func printSearchResult(ctx context.Context, resolver *links.Resolver, result *model.CDR3SearchResult) {
	if result == nil {
		return
	}
	for _, entry := range result.Clusters {
		structure := resolver.ResolveStructureLink(ctx, entry.Cluster.Meta, "")
		fmt.Printf("%s\tinfo=%.3f\tsize=%d\timage=%s\tstructure=%s\n",
			entry.Cluster.ClusterID, entry.Info, entry.Cluster.Size, entry.Cluster.ImageURL, structure)
	}
}

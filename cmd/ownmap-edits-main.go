package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	tracing "github.com/jamesrr39/go-tracing"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/httpextra"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/ownmap-edits/ownmap"
	"github.com/jamesrr39/ownmap-edits/ownmapdal"
	"github.com/jamesrr39/ownmap-edits/ownmapdal/ownmapsqldb"
	"github.com/jamesrr39/ownmap-edits/ownmapdal/ownmapsqldb/ownmappostgresql"
	"github.com/jamesrr39/ownmap-edits/ownmapdal/ownmapsqldb/ownmapsqlite"
	"github.com/jamesrr39/ownmap-edits/ownmapdal/parquetdb"
	"github.com/jamesrr39/ownmap-edits/ownmapupload"
	"github.com/jamesrr39/ownmap-edits/webservices"
	"github.com/jmoiron/sqlx"
	"github.com/paulmach/osm"
	"github.com/pkg/profile"
	"gopkg.in/alecthomas/kingpin.v2"
)

const (
	DEFAULT_PORT          = 9000
	DEFAULT_BASE_DIR      = "~/.local/share/github.com/jamesrr39/ownmap-edits/"
	DEFAULT_IMPORT_BATCH  = 100000
	HTTP_CLIENT_TIMEOUT   = time.Minute
	CHANGESET_CREATED_BY  = "ownmap-edits"
	OSM_ACCESS_TOKEN_ENV  = "OSM_ACCESS_TOKEN"
	DEFAULT_API_BASE_URL  = ownmapupload.DefaultAPIBaseURL
	DEFAULT_EDITS_TO_SHOW = 50
)

var logger *logpkg.Logger

var (
	verbose     = kingpin.Flag("v", "verbose logging").Bool()
	baseDir     = kingpin.Flag("base-dir", "directory to keep the database, traces and exports in").Default(DEFAULT_BASE_DIR).String()
	dbConnFlag  = kingpin.Flag("db", dbConnHelp).String()
	regionFlags = kingpin.Flag("region", `region to count contributions in, as "name:W,S,E,N". Can be repeated`).Strings()
)

var dbConnHelp = fmt.Sprintf("DB to keep edits and map data in. It should be the type, followed by the separator (%s), followed by the path or URL. For example: %s%smy/db/file. Defaults to a sqlite DB in the base dir",
	ownmapdal.ConnectionPathSeparator,
	string(ownmapdal.DBFileTypeSQLite),
	ownmapdal.ConnectionPathSeparator,
)

func main() {
	kingpin.CommandLine.PreAction(func(ctx *kingpin.ParseContext) error {
		logLevel := logpkg.LogLevelInfo
		if *verbose {
			logLevel = logpkg.LogLevelDebug
		}
		logger = logpkg.NewLogger(os.Stderr, logLevel)
		return nil
	})

	setupServe()
	setupUpload()
	setupEdits()
	setupImportMapData()
	setupExportEdits()

	kingpin.Parse()
}

// runAction logs the stack trace of a failed command
func runAction(run func() errorsx.Error) error {
	err := run()
	if err != nil {
		return fmt.Errorf("error: %q\nStack trace:\n%s", err.Error(), err.Stack())
	}
	return nil
}

func ensurePathsConfig() (*ownmapdal.PathsConfig, errorsx.Error) {
	pathsConfig, err := ownmapdal.NewPathsConfig(*baseDir)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	err = pathsConfig.EnsurePaths()
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return pathsConfig, nil
}

func loadRegionSet() (*ownmapdal.RegionSet, errorsx.Error) {
	var regions []*ownmapdal.Region
	for _, definition := range *regionFlags {
		region, err := ownmapdal.ParseRegion(definition)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}
		regions = append(regions, region)
	}

	return ownmapdal.NewRegionSet(regions), nil
}

type stores struct {
	db         *sqlx.DB
	editQueue  *ownmapsqldb.SQLEditStore
	mapData    *ownmapsqldb.SQLMapData
	noteEdits  *ownmapsqldb.SQLNoteEditsStore
	statistics *ownmapsqldb.SQLStatisticsStore
}

func openDB(dbConnString string) (*sqlx.DB, errorsx.Error) {
	dbConnConfig, err := ownmapdal.ParseDBConnFilePath(dbConnString)
	if err != nil {
		return nil, errorsx.Wrap(err, "db connection string", dbConnString)
	}

	switch dbConnConfig.Type {
	case ownmapdal.DBFileTypeSQLite:
		return ownmapsqlite.Open(dbConnConfig.ConnectionPath)
	case ownmapdal.DBFileTypePostgresql:
		return ownmappostgresql.Open(dbConnConfig.ConnectionPath)
	default:
		return nil, errorsx.Errorf("unrecognized db connection type: %q", dbConnConfig.Type)
	}
}

func openStores(pathsConfig *ownmapdal.PathsConfig, regionSet *ownmapdal.RegionSet) (*stores, errorsx.Error) {
	dbConnString := *dbConnFlag
	if dbConnString == "" {
		dbConnString = pathsConfig.DefaultDBConnString()
	}

	db, err := openDB(dbConnString)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return &stores{
		db:         db,
		editQueue:  ownmapsqldb.NewSQLEditStore(db),
		mapData:    ownmapsqldb.NewSQLMapData(db),
		noteEdits:  ownmapsqldb.NewSQLNoteEditsStore(db),
		statistics: ownmapsqldb.NewSQLStatisticsStore(db, regionSet),
	}, nil
}

func setup() (*ownmapdal.PathsConfig, *ownmapdal.RegionSet, *stores, errorsx.Error) {
	pathsConfig, err := ensurePathsConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	regionSet, err := loadRegionSet()
	if err != nil {
		return nil, nil, nil, err
	}

	s, err := openStores(pathsConfig, regionSet)
	if err != nil {
		return nil, nil, nil, err
	}

	return pathsConfig, regionSet, s, nil
}

// loggingListener tells whoever is watching the log what happened to each edit
type loggingListener struct{}

func (loggingListener) OnUploaded(editType string, position ownmap.Position) {
	logger.Info("uploaded a %q edit at %f,%f", editType, position.Lat, position.Lon)
}

func (loggingListener) OnDiscarded(editType string, position ownmap.Position) {
	logger.Warn("discarded a %q edit at %f,%f: it conflicts with changes made by others", editType, position.Lat, position.Lon)
}

type uploadFlags struct {
	apiURL      *string
	accessToken *string
	maxIdle     *time.Duration
}

func addUploadFlags(cmd *kingpin.CmdClause) uploadFlags {
	return uploadFlags{
		apiURL:      cmd.Flag("api-url", "OSM API v0.6 base URL").Default(DEFAULT_API_BASE_URL).String(),
		accessToken: cmd.Flag("access-token", "OAuth 2 access token for the OSM API").Envar(OSM_ACCESS_TOKEN_ENV).String(),
		maxIdle:     cmd.Flag("changeset-max-idle", "how long a changeset is reused after its last upload").Default(ownmapupload.DefaultChangesetMaxIdle.String()).Duration(),
	}
}

func newUploader(s *stores, flags uploadFlags) (*ownmapupload.ElementEditsUploader, *ownmapupload.ChangesetManager) {
	api := ownmapupload.NewOSMAPIClient(ownmapupload.OSMAPIClientConfig{
		BaseURL:     *flags.apiURL,
		AccessToken: *flags.accessToken,
		Generator:   CHANGESET_CREATED_BY,
	}, &http.Client{Timeout: HTTP_CLIENT_TIMEOUT})

	changesetManager := ownmapupload.NewChangesetManager(logger, api, CHANGESET_CREATED_BY, *flags.maxIdle)

	uploader := ownmapupload.NewElementEditsUploader(
		logger,
		s.editQueue,
		s.noteEdits,
		s.mapData,
		ownmapupload.NewElementEditUploader(logger, api, changesetManager),
		s.statistics,
		&ownmapupload.ElementEditsUploaderConfig{Listener: loggingListener{}},
	)

	return uploader, changesetManager
}

var addrHelp = fmt.Sprintf(
	`address to serve on. Ex: ':%d' listen on port %d to traffic from anywhere. 'localhost:%d' listen on port %d to traffic from localhost`,
	DEFAULT_PORT, DEFAULT_PORT, DEFAULT_PORT, DEFAULT_PORT,
)

func setupServe() {
	cmd := kingpin.Command("serve", "serve webserver")
	addr := cmd.Flag("addr", addrHelp).Default(fmt.Sprintf("localhost:%d", DEFAULT_PORT)).String()
	flags := addUploadFlags(cmd)
	cmd.Action(func(ctx *kingpin.ParseContext) error {
		return runAction(func() errorsx.Error {
			pathsConfig, regionSet, s, err := setup()
			if err != nil {
				return err
			}
			defer s.db.Close()

			uploader, changesetManager := newUploader(s, flags)
			defer closeChangesets(changesetManager)

			router, err := createServer(pathsConfig, regionSet, s, uploader)
			if err != nil {
				return err
			}

			server := httpextra.NewServerWithTimeouts()
			server.Addr = *addr
			server.Handler = router

			logger.Info("about to start serving on %q", *addr)

			goErr := server.ListenAndServe()
			if goErr != nil {
				return errorsx.Wrap(goErr)
			}
			return nil
		})
	})
}

func createServer(pathsConfig *ownmapdal.PathsConfig, regionSet *ownmapdal.RegionSet, s *stores, uploader webservices.Uploader) (chi.Router, errorsx.Error) {
	traceFilePath := filepath.Join(pathsConfig.TraceDir, fmt.Sprintf("trace_%s.pbf", time.Now().Format("2006-01-02__03_04_05")))
	logger.Info("tracing at %q", traceFilePath)

	traceFile, err := os.Create(traceFilePath)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	tracer := tracing.NewTracer(traceFile)

	router := chi.NewRouter()
	router.Use(middleware.DefaultLogger)
	router.Use(tracing.Middleware(tracer))
	router.Route("/api/", func(r chi.Router) {
		r.Mount("/info", webservices.NewInfoService(logger, s.editQueue, regionSet))
		r.Mount("/edits", webservices.NewEditsService(logger, s.editQueue, s.mapData, uploader))
		r.Mount("/notes", webservices.NewNoteEditsService(logger, s.noteEdits))
		r.Mount("/statistics", webservices.NewStatisticsService(logger, s.statistics))
		r.Mount("/map-data", webservices.NewMapDataService(logger, s.mapData))
	})

	return router, nil
}

func closeChangesets(changesetManager *ownmapupload.ChangesetManager) {
	ctx, cancel := context.WithTimeout(context.Background(), HTTP_CLIENT_TIMEOUT)
	defer cancel()

	err := changesetManager.CloseAll(ctx)
	if err != nil {
		logger.Error("failed to close changesets: %s\n%s", err.Error(), err.Stack())
	}
}

func setupUpload() {
	cmd := kingpin.Command("upload", "upload all pending edits")
	flags := addUploadFlags(cmd)
	shouldProfile := cmd.Flag("profile", "profile the upload performance").Bool()
	cmd.Action(func(ctx *kingpin.ParseContext) error {
		return runAction(func() errorsx.Error {
			pathsConfig, _, s, err := setup()
			if err != nil {
				return err
			}
			defer s.db.Close()

			if *shouldProfile {
				defer profile.Start(profile.ProfilePath(pathsConfig.TraceDir), profile.CPUProfile).Stop()
			}

			// an interrupt stops the upload after the edit currently being uploaded
			uploadCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			uploader, changesetManager := newUploader(s, flags)
			defer closeChangesets(changesetManager)

			startTime := time.Now()
			result, err := uploader.Upload(uploadCtx)
			if err != nil {
				return err
			}

			logger.Info("uploaded %d edits and discarded %d in %s", result.Uploaded, result.Discarded, time.Since(startTime))
			return nil
		})
	})
}

func setupEdits() {
	cmd := kingpin.Command("edits", "list the most recent edits")
	limit := cmd.Flag("limit", "amount of edits to show (0 for all)").Default(strconv.Itoa(DEFAULT_EDITS_TO_SHOW)).Int()
	cmd.Action(func(ctx *kingpin.ParseContext) error {
		return runAction(func() errorsx.Error {
			_, _, s, err := setup()
			if err != nil {
				return err
			}
			defer s.db.Close()

			edits, err := s.editQueue.GetAll(context.Background())
			if err != nil {
				return err
			}

			if *limit > 0 && len(edits) > *limit {
				edits = edits[len(edits)-*limit:]
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tACTION\tELEMENT\tSTATE\tCREATED")
			for _, edit := range edits {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
					edit.ID,
					edit.Type,
					edit.Action.ActionType(),
					edit.ElementKey(),
					edit.State,
					humanize.Time(edit.CreatedAt),
				)
			}

			goErr := tw.Flush()
			if goErr != nil {
				return errorsx.Wrap(goErr)
			}
			return nil
		})
	})
}

// boundsStrToOSMBounds parses [W,N,E,S]. An empty string means the whole world.
func boundsStrToOSMBounds(boundsStr string) (osm.Bounds, errorsx.Error) {
	if boundsStr == "" {
		return ownmap.GetWholeWorldBounds(), nil
	}

	bounds := osm.Bounds{}

	fragments := strings.Split(boundsStr, ",")
	if len(fragments) != 4 {
		return bounds, errorsx.Errorf("expected 4 (or 0) bounds, but found %d", len(fragments))
	}

	for idx, boundStr := range fragments {
		boundFloat, err := strconv.ParseFloat(strings.TrimSpace(boundStr), 64)
		if err != nil {
			return bounds, errorsx.Wrap(err)
		}
		switch idx {
		case 0:
			bounds.MinLon = boundFloat
		case 1:
			bounds.MaxLat = boundFloat
		case 2:
			bounds.MaxLon = boundFloat
		case 3:
			bounds.MinLat = boundFloat
		}
	}

	return bounds, nil
}

func setupImportMapData() {
	cmd := kingpin.Command("import-map-data", "seed the local map data from a PBF extract")
	filePath := cmd.Arg("file", "PBF file to import").Required().String()
	boundsStr := cmd.Flag("bounds", "set the bounds that the importer should import within. [W,N,E,S] Example: -1,1,1,-1").Default("").String()
	batchSize := cmd.Flag("batch-size", "maximum amount of elements to write at once").Default(strconv.Itoa(DEFAULT_IMPORT_BATCH)).Uint64()
	shouldProfile := cmd.Flag("profile", "profile the import performance").Bool()
	cmd.Action(func(ctx *kingpin.ParseContext) error {
		return runAction(func() errorsx.Error {
			pathsConfig, _, s, err := setup()
			if err != nil {
				return err
			}
			defer s.db.Close()

			if *shouldProfile {
				defer profile.Start(profile.ProfilePath(pathsConfig.TraceDir), profile.CPUProfile).Stop()
			}

			bounds, err := boundsStrToOSMBounds(*boundsStr)
			if err != nil {
				return err
			}

			file, goErr := gofs.NewOsFs().Open(*filePath)
			if goErr != nil {
				return errorsx.Wrap(goErr, "filePath", *filePath)
			}
			defer file.Close()

			pbfReader, err := ownmapdal.NewDefaultPBFReader(file)
			if err != nil {
				return err
			}
			defer pbfReader.Close()

			startTime := time.Now()

			stats, err := ownmapdal.ImportMapData(context.Background(), logger, pbfReader, &ownmapdal.ImportRunType{
				Bounds:           bounds,
				MaxItemsPerBatch: *batchSize,
			}, s.mapData)
			if err != nil {
				return err
			}

			logger.Info("imported %d nodes, %d ways and %d relations in %s", stats.Nodes, stats.Ways, stats.Relations, time.Since(startTime))
			return nil
		})
	})
}

func setupExportEdits() {
	cmd := kingpin.Command("export-edits", "export the edit log to a parquet file")
	outFilePath := cmd.Arg("file", "file to write to. Defaults to a new file in the exports dir").String()
	rowGroupSize := cmd.Flag("parquet-row-group-size", `Amount of rows in one parquet "group"`).Default(fmt.Sprintf("%d", parquetdb.DefaultRowGroupSize)).Int64()
	cmd.Action(func(ctx *kingpin.ParseContext) error {
		return runAction(func() errorsx.Error {
			pathsConfig, _, s, err := setup()
			if err != nil {
				return err
			}
			defer s.db.Close()

			filePath := *outFilePath
			if filePath == "" {
				filePath = filepath.Join(pathsConfig.ExportDir, time.Now().Format("edits_2006-01-02_15_04_05.parquet"))
			}

			count, err := parquetdb.ExportEditLog(context.Background(), s.editQueue, filePath, *rowGroupSize)
			if err != nil {
				return err
			}

			log.Printf("exported %d edits to %q\n", count, filePath)
			return nil
		})
	})
}

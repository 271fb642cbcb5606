package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/fleximart/catalog-service/internal/catalog/importer"
	"github.com/fleximart/catalog-service/internal/catalog/repository"
	"github.com/fleximart/catalog-service/internal/config"
	"github.com/fleximart/catalog-service/internal/database"
	"github.com/fleximart/catalog-service/internal/storage"
	"github.com/fleximart/catalog-service/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	fileFlag   string
	objectFlag string
)

var rootCmd = &cobra.Command{
	Use:          "catalog-import",
	Short:        "Load a products catalog export into MongoDB",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		return runImport(cmd.Context(), cfg)
	},
}

var publishCmd = &cobra.Command{
	Use:          "publish",
	Short:        "Upload a local catalog export to the MinIO bucket",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		return runPublish(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&fileFlag, "file", "", "local catalog file (default CATALOG_IMPORT_FILE)")
	rootCmd.PersistentFlags().StringVar(&objectFlag, "object", "", "object key in MINIO_BUCKET (default CATALOG_IMPORT_OBJECT)")
	rootCmd.AddCommand(publishCmd)
}

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openSource reads from MinIO when an object key is configured, otherwise
// from the local file.
func openSource(ctx context.Context, cfg *config.Config) (io.ReadCloser, string, error) {
	file, object := cfg.Import.File, cfg.Import.Object
	if fileFlag != "" {
		file, object = fileFlag, ""
	}
	if objectFlag != "" {
		object = objectFlag
	}
	if object != "" {
		store, err := storage.NewObjectStore(ctx, cfg.MinIO)
		if err != nil {
			return nil, "", err
		}
		rc, err := store.Open(ctx, object)
		return rc, cfg.MinIO.Bucket + "/" + object, err
	}
	rc, err := storage.Files{}.Open(ctx, file)
	return rc, file, err
}

func runImport(ctx context.Context, cfg *config.Config) error {
	if cfg.MongoDB.URI == "" {
		return fmt.Errorf("MONGODB_URI is required for catalog-import")
	}
	client, err := database.ConnectWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, cfg.MongoDB.ConnectAttempts, time.Second)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	src, name, err := openSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	col := client.Database(cfg.MongoDB.Database).Collection(cfg.MongoDB.Collection)
	logger.Infof("importing %s into %s.%s", name, cfg.MongoDB.Database, cfg.MongoDB.Collection)
	res, err := importer.New(repository.NewMongoRepo(col)).Import(ctx, src)
	if err != nil {
		return fmt.Errorf("import %s: %w", name, err)
	}
	fmt.Printf("inserted=%d skipped=%d\n", res.Inserted, res.Skipped)
	return nil
}

func runPublish(ctx context.Context, cfg *config.Config) error {
	file := cfg.Import.File
	if fileFlag != "" {
		file = fileFlag
	}
	key := objectFlag
	if key == "" {
		key = cfg.Import.Object
	}
	if key == "" {
		return fmt.Errorf("an object key is required (--object or CATALOG_IMPORT_OBJECT)")
	}
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open catalog file: %w", err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	// reject unreadable exports before they reach the bucket
	products, err := importer.Decode(f)
	if err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	store, err := storage.NewObjectStore(ctx, cfg.MinIO)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, key, f, st.Size()); err != nil {
		return err
	}
	u, err := store.PresignedURL(ctx, key, time.Hour)
	if err != nil {
		return err
	}
	logger.Infof("published %d products from %s to %s/%s", len(products), file, cfg.MinIO.Bucket, key)
	fmt.Println(u)
	return nil
}

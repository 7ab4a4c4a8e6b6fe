package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var seedCmd = &cobra.Command{
	Use:   "seed FILE...",
	Short: "Load JSON documents into the store",
	Long: `Load JSON documents into the store. Each file holds an object mapping a
collection name (users, tasks, companies, attendances) to a list of documents.
Documents with an existing _id replace the stored one.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		seed(args)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().String("path", "", "sqlite database path (default is crewzy.db)")
	viper.BindPFlag("store.path", seedCmd.Flags().Lookup("path"))
}

func seed(files []string) {
	log, config := bootstrap()
	ctx := context.Background()

	cfg := *config.Store
	cfg.SeedFile = ""

	docs, err := openStore(ctx, &cfg, log)
	if err != nil {
		log.Fatal("opening the store", zap.Error(err))
	}
	defer docs.Close()

	if cfg.Driver == "memory" {
		log.Warn("seeding the memory store has no lasting effect")
	}

	for _, file := range files {
		counts, err := seedFromFile(ctx, docs, file)
		if err != nil {
			log.Fatal("seeding", zap.String("file", file), zap.Error(err))
		}
		log.Info("seeded", zap.String("file", file), zap.Any("documents", counts))
	}
}

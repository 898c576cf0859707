package main

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	verbose    bool
	jsonLog    bool

	// Engine flags
	variantName     string
	combinerName    string
	predictors      int
	minObservations int
	minProb         float64
	maxProb         float64
	scoreDelay      uint64
	ignoredTokens   []string
	workers         int

	// Store flags
	storeBackend string
	sqlitePath   string
	mysqlDSN     string

	// Command flags
	modelPath string
	threshold float64
	folds     int
	seed      int64
	inputFile string

	rootCmd = &cobra.Command{
		Use:   "mail-classify",
		Short: "Train and evaluate the mail classifier from the command line",
		Long: `mail-classify drives the classifier over labeled mail corpora:
train a model, score labeled mail against it, cross-validate, or classify
a single message. Corpora are given as CATEGORY=path/to/file.mbox
arguments.`,
	}

	trainCmd = &cobra.Command{
		Use:   "train CATEGORY=MBOX [CATEGORY=MBOX...]",
		Short: "Learn every message of the given mbox files under their labels",
		Args:  cobra.MinimumNArgs(1),
		Run:   runTrain, // Defined in cmd_train.go
	}

	classifyCmd = &cobra.Command{
		Use:   "classify CATEGORY=MBOX [CATEGORY=MBOX...]",
		Short: "Score labeled mail against a trained model and report a confusion matrix",
		Args:  cobra.MinimumNArgs(1),
		Run:   runClassify, // Defined in cmd_classify.go
	}

	crossvalCmd = &cobra.Command{
		Use:   "crossval CATEGORY=MBOX [CATEGORY=MBOX...]",
		Short: "Run N-fold cross-validation over the given corpora",
		Args:  cobra.MinimumNArgs(1),
		Run:   runCrossval, // Defined in cmd_crossval.go
	}

	scoreCmd = &cobra.Command{
		Use:   "score",
		Short: "Classify one message from a file or stdin",
		Args:  cobra.NoArgs,
		Run:   runScore, // Defined in cmd_score.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (overrides command line flags)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "Output logs in JSON format")

	rootCmd.PersistentFlags().StringVar(&variantName, "variant", "bayes", "Classifier variant (bayes, random)")
	rootCmd.PersistentFlags().StringVar(&combinerName, "combiner", "robinson-fisher", "Score combiner (robinson-fisher, odds-product)")
	rootCmd.PersistentFlags().IntVar(&predictors, "predictors", 41, "Most significant tokens scored per document")
	rootCmd.PersistentFlags().IntVar(&minObservations, "min-observations", 5, "Counts a token needs before it predicts")
	rootCmd.PersistentFlags().Float64Var(&minProb, "min-prob", 0.01, "Lower clamp for cached probabilities")
	rootCmd.PersistentFlags().Float64Var(&maxProb, "max-prob", 0.99, "Upper clamp for cached probabilities")
	rootCmd.PersistentFlags().Uint64Var(&scoreDelay, "score-delay", 1, "Operations the predictor cache may lag behind")
	rootCmd.PersistentFlags().StringSliceVar(&ignoredTokens, "ignore", nil, "Tokens dropped during extraction")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "Concurrent scorers (0 = GOMAXPROCS)")

	rootCmd.PersistentFlags().StringVar(&storeBackend, "store", "memory", "Model store backend (memory, sqlite, mysql)")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite-path", "", "SQLite database path for --store sqlite")
	rootCmd.PersistentFlags().StringVar(&mysqlDSN, "mysql-dsn", "", "MySQL DSN for --store mysql")

	rootCmd.AddCommand(trainCmd)
	trainCmd.Flags().StringVar(&modelPath, "model", "", "Write the trained model snapshot to this file")

	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().StringVar(&modelPath, "model", "", "Load a model snapshot from this file first")
	classifyCmd.Flags().Float64Var(&threshold, "threshold", 0.9, "Minimum winning probability; weaker verdicts file under UNK")

	rootCmd.AddCommand(crossvalCmd)
	crossvalCmd.Flags().IntVar(&folds, "folds", 10, "Number of cross-validation folds")
	crossvalCmd.Flags().Float64Var(&threshold, "threshold", 0.9, "Minimum winning probability; weaker verdicts file under UNK")
	crossvalCmd.Flags().Int64Var(&seed, "seed", 0, "Seed for fold assignment (0 = time-based, not reproducible)")

	rootCmd.AddCommand(scoreCmd)
	scoreCmd.Flags().StringVar(&inputFile, "file", "", "Input message file (use stdin if not specified)")
	scoreCmd.Flags().StringVar(&modelPath, "model", "", "Load a model snapshot from this file first")
	scoreCmd.Flags().Float64Var(&threshold, "threshold", 0.9, "Minimum winning probability; weaker verdicts file under UNK")
}

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/helmut-steiner/finalmq/internal/config"
	"github.com/helmut-steiner/finalmq/internal/metadata"
	"github.com/helmut-steiner/finalmq/internal/protocol"
	"github.com/helmut-steiner/finalmq/internal/serializestruct"
	"github.com/helmut-steiner/finalmq/pkg/logger"
)

// app 命令共享的运行时状态，在 PersistentPreRunE 中初始化
type app struct {
	configPath string
	schemas    []string
	logLevel   string
	metrics    bool

	cfg     *config.Config
	reg     *metadata.Registry
	factory *serializestruct.Factory
	format  *protocol.Format
	log     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "fmqconv",
		Short:         "Convert schema driven messages between wire formats and envelopes",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if !a.metrics {
				return nil
			}
			return printMetrics(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (yaml)")
	root.PersistentFlags().StringArrayVarP(&a.schemas, "schema", "s", nil, "schema file to load, repeatable")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log level")
	root.PersistentFlags().BoolVar(&a.metrics, "metrics", false, "print codec and envelope counters to stderr when done")

	root.AddCommand(newSchemaCmd(a), newConvertCmd(a), newEnvelopeCmd(a))
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg
	a.log = logger.Setup(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	}).Named("fmqconv")

	a.reg = metadata.NewRegistry()
	a.factory = serializestruct.NewFactory()
	if err := protocol.RegisterTypes(a.reg, a.factory); err != nil {
		return err
	}
	files := append(append([]string{}, cfg.SchemaFiles...), a.schemas...)
	for _, f := range files {
		if err := metadata.LoadSchemaFile(a.reg, f); err != nil {
			return err
		}
		a.log.Debug("schema loaded", zap.String("file", f))
	}
	if err := a.reg.Freeze(); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	a.factory.Freeze()
	a.format = protocol.NewFormat(a.reg, a.factory)
	return nil
}

// readInput 读取 --in 文件或标准输入，受 max_message_size 限制
func (a *app) readInput(cmd *cobra.Command, path string) ([]byte, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	max := int64(a.cfg.MaxMessageSize.Bytes())
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("input exceeds %s", a.cfg.MaxMessageSize.String())
	}
	return data, nil
}

func (a *app) writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

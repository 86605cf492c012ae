package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/garr-ai/garr/pkg/afero"
	"github.com/garr-ai/garr/pkg/hfhub"
	"github.com/garr-ai/garr/pkg/logging"
)

type pretrainedDownloadParams struct {
	fx.In

	Logger     logging.Interface `name:"another_log"`
	Downloader *hfhub.Downloader
}

// PretrainedDownloadAgent fetches a base checkpoint from the Hugging Face Hub
type PretrainedDownloadAgent struct {
	downloader *hfhub.Downloader
	logger     logging.Interface
}

func (h *PretrainedDownloadAgent) Name() string {
	return "pretrained-download"
}

func (h *PretrainedDownloadAgent) ShortDescription() string {
	return "Download a pretrained GPT-2 checkpoint"
}

func (h *PretrainedDownloadAgent) LongDescription() string {
	return "Downloads config.json, model.safetensors and vocab.json of a Hugging Face Hub repository into the local directory the training agent starts from"
}

func (h *PretrainedDownloadAgent) ConfigureCommand(cmd *cobra.Command) {
	cmd.Run = func(cmd *cobra.Command, args []string) {
		runAgentCommand(cmd, h, h.Start)
	}
}

func (h *PretrainedDownloadAgent) FxModules() []fx.Option {
	return []fx.Option{
		afero.Module,
		logging.Module,
		logging.ModuleNamed("another_log"),
		hfhub.Module,
		fx.Invoke(func(params pretrainedDownloadParams) {
			h.downloader = params.Downloader
			h.logger = params.Logger
		}),
	}
}

func (h *PretrainedDownloadAgent) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	paths, err := h.downloader.DownloadAll(ctx)
	if err != nil {
		return err
	}
	for _, p := range paths {
		h.logger.Infof("Downloaded %s", p)
	}
	return nil
}

func NewPretrainedDownloadAgent() *PretrainedDownloadAgent {
	return &PretrainedDownloadAgent{}
}

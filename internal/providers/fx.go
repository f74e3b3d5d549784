package providers

import (
	"github.com/zyalhor1961/corematch-web-sub006/internal/providers/email"
	"github.com/zyalhor1961/corematch-web-sub006/internal/providers/llm"
	"github.com/zyalhor1961/corematch-web-sub006/internal/providers/pdf"
	"github.com/zyalhor1961/corematch-web-sub006/internal/providers/search"
	"github.com/zyalhor1961/corematch-web-sub006/internal/providers/slack"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	slack.Module,
	pdf.Module,
	search.Module,
	llm.Module,
)

package automod

import (
	"github.com/galaxyguard/warden/automod/action"
	"github.com/galaxyguard/warden/automod/countstore"
	"github.com/galaxyguard/warden/automod/engine"
)

type Engine = engine.Engine
type Result = engine.Result
type CumulativeResult = engine.CumulativeResult
type Standing = engine.Standing
type Policy = engine.Policy

type Notifier = engine.Notifier
type SlackNotifier = engine.SlackNotifier

type Action = action.Action

var (
	PolicyTiered     = engine.PolicyTiered
	PolicyCumulative = engine.PolicyCumulative

	PeriodTotal = countstore.PeriodTotal
	PeriodDay   = countstore.PeriodDay
	PeriodHour  = countstore.PeriodHour
)

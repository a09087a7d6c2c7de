package controllers

import (
	"github.com/gofiber/fiber/v2/log"

	"github.com/FinnKramer/PawMarket/app/repository"
	"github.com/FinnKramer/PawMarket/internal/pkg/async"
	"github.com/FinnKramer/PawMarket/internal/pkg/billing"
	"github.com/FinnKramer/PawMarket/internal/pkg/lifecycle"
	"github.com/FinnKramer/PawMarket/internal/pkg/photostore"
)

// Package-level dependencies shared by all handlers. Initialized once from
// main after the database and cache are up.
var (
	listingEngine  *lifecycle.Engine
	reconciler     *billing.Reconciler
	stripeProvider *billing.StripeProvider
	paypalClient   *billing.PayPalClient
	photoClient    *photostore.Client
	taskRunner     *async.Runner
)

// Setup wires the controller layer. The Stripe and photo store failures are
// logged but not fatal: the rest of the app works without them and the
// affected handlers return errors.
func Setup() {
	repos := repository.GetGlobalRepositories()

	taskRunner = async.NewRunner(nil)
	listingEngine = lifecycle.NewEngine(repos, lifecycle.NewMailNotifier(), taskRunner)
	reconciler = billing.NewReconciler(repos, listingEngine)
	paypalClient = billing.NewPayPalClientFromEnv()

	var err error
	stripeProvider, err = billing.NewStripeProviderFromEnv()
	if err != nil {
		log.Warnf("[Setup] stripe unavailable: %v", err)
	}

	photoCfg, err := photostore.LoadConfig()
	if err != nil {
		log.Warnf("[Setup] photo storage misconfigured: %v", err)
	} else if photoCfg.IsEnabled() {
		photoClient, err = photostore.NewClient(photoCfg)
		if err != nil {
			log.Warnf("[Setup] photo storage unavailable: %v", err)
		}
	}
}

// Engine exposes the lifecycle engine for background jobs.
func Engine() *lifecycle.Engine {
	return listingEngine
}

// Shutdown waits for in-flight async tasks (notifications) to finish.
func Shutdown() {
	if taskRunner != nil {
		taskRunner.Wait()
	}
}

package services

import (
	portsrepo "github.com/fxledger/fxledger/internal/core/ports/repositories"
	portssvc "github.com/fxledger/fxledger/internal/core/ports/services"
	"github.com/fxledger/fxledger/internal/platform/config"
)

// NewServiceContainer creates a new service container with properly initialized dependencies
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider) *portssvc.ServiceContainer {
	container := &portssvc.ServiceContainer{}

	container.Currency = NewCurrencyService(repos.CurrencyRepo)
	container.User = NewUserService(repos.UserRepo)

	// The derivation engine sits behind the rate service: mutations trigger
	// it, and the manual regenerate endpoint delegates to it.
	deriver := NewRateDerivationService(repos.RateRepo, WithMaxPairErrors(cfg.DerivationMaxPairErrors))
	container.Rate = NewRateService(repos.RateRepo, container.Currency, deriver)

	return container
}

// Helper to check interface implementations at compile time
var (
	_ portssvc.CurrencySvcFacade = (*CurrencyService)(nil)
	_ portssvc.RateSvcFacade     = (*RateService)(nil)
	_ portssvc.RateDeriverSvc    = (*RateDerivationService)(nil)
	_ portssvc.UserSvcFacade     = (*UserService)(nil)
)

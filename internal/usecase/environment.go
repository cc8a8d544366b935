package usecase

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Environment окружение движка: состояние установки AI-модели.
// Создаётся на месте сборки приложения и передаётся в ConversionUseCase.
type Environment struct {
	installer ModelInstaller
	logger    *zap.Logger

	mu        sync.Mutex
	installed bool
}

// NewEnvironment создаёт окружение. installer может быть nil, тогда модель
// считается установленной.
func NewEnvironment(installer ModelInstaller, logger *zap.Logger) *Environment {
	return &Environment{
		installer: installer,
		logger:    logger,
		installed: installer == nil,
	}
}

// EnsureModel устанавливает модель, если она ещё не установлена.
// Неудачная установка будет повторена при следующем вызове.
func (e *Environment) EnsureModel(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.installed {
		return nil
	}

	e.logger.Info("Installing AI model")

	if err := e.installer.Install(ctx); err != nil {
		return fmt.Errorf("failed to install AI model: %w", err)
	}

	e.installed = true
	e.logger.Info("AI model installed")

	return nil
}

// Installed сообщает, установлена ли модель
func (e *Environment) Installed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.installed
}

package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bft-labs/go2relay/internal/domain"
	"github.com/bft-labs/go2relay/pkg/log"
)

// Controller timeouts.
const (
	DefaultCommandTimeout    = 8 * time.Second
	DefaultMotionModeTimeout = 3 * time.Second
)

// Controller turns synchronous API calls into dispatcher round trips and
// applies the keepalive side effects of each command.
type Controller struct {
	table             *CommandTable
	dispatcher        *Dispatcher
	keepalive         *Keepalive
	logger            log.Logger
	commandTimeout    time.Duration
	motionModeTimeout time.Duration
}

// NewController creates a controller. Non-positive timeouts use the defaults.
func NewController(
	table *CommandTable,
	dispatcher *Dispatcher,
	keepalive *Keepalive,
	commandTimeout time.Duration,
	motionModeTimeout time.Duration,
	logger log.Logger,
) *Controller {
	if commandTimeout <= 0 {
		commandTimeout = DefaultCommandTimeout
	}
	if motionModeTimeout <= 0 {
		motionModeTimeout = DefaultMotionModeTimeout
	}
	return &Controller{
		table:             table,
		dispatcher:        dispatcher,
		keepalive:         keepalive,
		logger:            logger,
		commandTimeout:    commandTimeout,
		motionModeTimeout: motionModeTimeout,
	}
}

// ExecuteCommand submits the named command and waits for its result.
// A disengage command stops the keepalive before it is queued; a
// keepalive-eligible command starts it once the robot confirms.
func (c *Controller) ExecuteCommand(ctx context.Context, name string) (domain.CommandResult, error) {
	spec, ok := c.table.Lookup(name)
	if !ok {
		return domain.CommandResult{}, fmt.Errorf("%w: %q", domain.ErrUnknownCommand, name)
	}

	if spec.Disengage {
		c.keepalive.RequestStop(spec.Name)
	}

	id := c.dispatcher.Submit(spec.Name, spec.APIID)
	res, err := c.dispatcher.AwaitResult(ctx, id, c.commandTimeout)
	if err != nil {
		c.logger.Warn("command did not complete",
			log.String("command", spec.Name),
			log.String("result_id", id),
			log.Err(err),
		)
		return res, err
	}

	if res.Success && spec.Keepalive {
		c.keepalive.StartIfNeeded(spec.Name)
	}
	return res, nil
}

// SetMotionMode submits a motion-mode change and waits for its result.
func (c *Controller) SetMotionMode(ctx context.Context, mode string) (domain.CommandResult, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if !ValidMode(mode) {
		return domain.CommandResult{}, fmt.Errorf("%w: %q", domain.ErrUnknownMode, mode)
	}

	id := c.dispatcher.SubmitMotionMode(mode)
	return c.dispatcher.AwaitResult(ctx, id, c.motionModeTimeout)
}

// Commands lists the available commands.
func (c *Controller) Commands() []CommandSpec {
	return c.table.Commands()
}

// KeepaliveActive reports whether the keepalive loop is running.
func (c *Controller) KeepaliveActive() bool {
	return c.keepalive.Active()
}

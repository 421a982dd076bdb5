package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"cellar/internal/apiclient"
	"cellar/internal/config"
)

type commandContext struct {
	apiFlag    *string
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(apiFlag, configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) apiAddress() string {
	if c.apiFlag != nil {
		if value := strings.TrimSpace(*c.apiFlag); value != "" {
			return value
		}
	}
	if c.config != nil {
		return c.config.Paths.APIBind
	}
	return ""
}

func (c *commandContext) client() (*apiclient.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return apiclient.New(c.apiAddress(), cfg.Paths.APIToken), nil
}

func (c *commandContext) withClient(fn func(*apiclient.Client) error) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	return wrapDialError(fn(client), client.BaseURL())
}

func wrapDialError(err error, address string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("daemon at %s refused the connection; start it with `cellar daemon`", address)
	}
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func parseID(raw, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, raw)
	}
	return id, nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	TemplatePurchaseConfirmation = "purchase_confirmation"
	TemplateProPlanActivated     = "pro_plan_activated"
)

// NotificationTemplates configures subjects and switches per email template.
type NotificationTemplates struct {
	Templates map[string]TemplateSettings `mapstructure:"templates"`
}

type TemplateSettings struct {
	Subject  string `mapstructure:"subject"`
	Disabled bool   `mapstructure:"disabled"`
}

func DefaultNotificationTemplates() NotificationTemplates {
	return NotificationTemplates{
		Templates: map[string]TemplateSettings{
			TemplatePurchaseConfirmation: {Subject: "Purchase Confirmed"},
			TemplateProPlanActivated:     {Subject: "Welcome to MasterClass Pro!"},
		},
	}
}

// Lookup returns the settings for a template, falling back to defaults.
func (n NotificationTemplates) Lookup(name string) (TemplateSettings, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	settings, ok := n.Templates[key]
	if !ok {
		settings, ok = DefaultNotificationTemplates().Templates[key]
	}
	return settings, ok
}

type NotificationConfigHolder struct {
	current atomic.Value // holds NotificationTemplates
}

// NewStaticNotificationConfigHolder returns a holder that never reloads.
func NewStaticNotificationConfigHolder(templates NotificationTemplates) *NotificationConfigHolder {
	holder := &NotificationConfigHolder{}
	holder.current.Store(templates)
	return holder
}

func NewNotificationConfigHolder(cfg Config, log *zap.Logger) (*NotificationConfigHolder, error) {
	v := viper.New()

	if path := strings.TrimSpace(cfg.Notification.TemplatesPath); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("notifications")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/entitlement")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ENTITLEMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultNotificationTemplates()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// no file: serve defaults without watching
		return NewStaticNotificationConfigHolder(defaults), nil
	}

	var templates NotificationTemplates
	if err := v.UnmarshalKey("notifications", &templates); err != nil {
		return nil, err
	}
	templates = mergeTemplates(defaults, templates)
	if err := validateNotificationTemplates(templates); err != nil {
		return nil, err
	}

	holder := NewStaticNotificationConfigHolder(templates)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated NotificationTemplates
		if err := v.UnmarshalKey("notifications", &updated); err != nil {
			log.Warn("notification config reload failed", zap.Error(err))
			return
		}
		updated = mergeTemplates(defaults, updated)
		if err := validateNotificationTemplates(updated); err != nil {
			log.Warn("invalid notification config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("notification config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *NotificationConfigHolder) Get() NotificationTemplates {
	if h == nil {
		return DefaultNotificationTemplates()
	}
	value, ok := h.current.Load().(NotificationTemplates)
	if !ok {
		return DefaultNotificationTemplates()
	}
	return value
}

func mergeTemplates(base, override NotificationTemplates) NotificationTemplates {
	out := NotificationTemplates{Templates: map[string]TemplateSettings{}}
	for name, settings := range base.Templates {
		out.Templates[name] = settings
	}
	for name, settings := range override.Templates {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if strings.TrimSpace(settings.Subject) == "" {
			settings.Subject = out.Templates[name].Subject
		}
		out.Templates[name] = settings
	}
	return out
}

func validateNotificationTemplates(n NotificationTemplates) error {
	for name, settings := range n.Templates {
		if strings.TrimSpace(settings.Subject) == "" {
			return errors.New("notifications.templates." + name + ".subject cannot be empty")
		}
	}
	return nil
}

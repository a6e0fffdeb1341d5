package main

import (
	"context"
	"strings"
	"time"

	"github.com/yeuai/botscript"
	"github.com/yeuai/botscript/core"
	"github.com/yeuai/botscript/sio"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveOpts struct {
	listen     string
	websockets bool
	watch      bool
	debounce   time.Duration
	sweep      time.Duration
}

var mqttOpts struct {
	broker     string
	clientID   string
	username   string
	password   string
	topics     []string
	replyTopic string
	eventTopic string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the bot over HTTP and websockets, and optionally MQTT",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, true)
	},
}

var mqCmd = &cobra.Command{
	Use:   "mq",
	Short: "Couple the bot to an MQTT broker",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, false)
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVarP(&serveOpts.listen, "listen", "l", ":8080", "HTTP service address")
	f.BoolVar(&serveOpts.websockets, "websockets", true, "enable websocket endpoints")
	for _, c := range []*cobra.Command{serveCmd, mqCmd} {
		f := c.Flags()
		f.BoolVarP(&serveOpts.watch, "watch", "w", false, "reload when a local script changes")
		f.DurationVar(&serveOpts.debounce, "debounce", botscript.DefaultDebounce, "wait for changes to settle")
		f.DurationVar(&serveOpts.sweep, "sweep", time.Minute, "interval for forgetting idle sessions")
		f.StringVar(&mqttOpts.broker, "mqtt-broker", "", "MQTT broker (tcp://host:port)")
		f.StringVar(&mqttOpts.clientID, "mqtt-client-id", "", "MQTT client id")
		f.StringVar(&mqttOpts.username, "mqtt-username", "", "MQTT username")
		f.StringVar(&mqttOpts.password, "mqtt-password", "", "MQTT password")
		f.StringSliceVar(&mqttOpts.topics, "mqtt-topic", nil, "MQTT subscription topic[:qos] (repeatable)")
		f.StringVar(&mqttOpts.replyTopic, "mqtt-reply-topic", "", "MQTT topic for replies")
		f.StringVar(&mqttOpts.eventTopic, "mqtt-event-topic", "", "MQTT topic prefix for bot events")
	}
}

// adjust applies the serve and mq flags.
func adjust(cmd *cobra.Command, http bool) func(conf *botscript.Conf) {
	return func(conf *botscript.Conf) {
		flags := cmd.Flags()
		if http {
			if flags.Changed("listen") || conf.Listen == "" {
				conf.Listen = serveOpts.listen
			}
			if flags.Changed("websockets") || confFile == "" {
				conf.WebSockets = serveOpts.websockets
			}
		} else {
			conf.Listen = ""
		}

		if mqttOpts.broker != "" {
			if conf.MQTT == nil {
				conf.MQTT = &botscript.MQTTConf{}
			}
			conf.MQTT.Broker = mqttOpts.broker
		}
		if conf.MQTT == nil {
			return
		}
		if mqttOpts.clientID != "" {
			conf.MQTT.ClientID = mqttOpts.clientID
		}
		if mqttOpts.username != "" {
			conf.MQTT.Username = mqttOpts.username
			conf.MQTT.Password = mqttOpts.password
		}
		if 0 < len(mqttOpts.topics) {
			conf.MQTT.Topics = mqttOpts.topics
		}
		if mqttOpts.replyTopic != "" {
			conf.MQTT.ReplyTopic = mqttOpts.replyTopic
		}
		if mqttOpts.eventTopic != "" {
			conf.MQTT.EventTopic = mqttOpts.eventTopic
		}
	}
}

func run(cmd *cobra.Command, http bool) error {
	sys, err := newSystem(cmd.Context(), cmd, adjust(cmd, http))
	if err != nil {
		return err
	}
	defer sys.Close()

	conf := sys.Conf
	if !http && conf.MQTT == nil {
		return errNoBroker
	}

	g, ctx := errgroup.WithContext(cmd.Context())

	sessions := sio.NewSessions(conf.SessionTTL)
	g.Go(func() error {
		sessions.Run(ctx, serveOpts.sweep)
		return nil
	})

	if conf.Listen != "" {
		chat, err := sio.NewChat(ctx, sys.Bot, sessions, nil)
		if err != nil {
			return err
		}
		chat.Logger = logger.Named("chat")
		service := sio.NewService(chat, conf.Listen)
		service.WebSockets = conf.WebSockets
		service.Logger = logger.Named("service")
		if conf.WebSockets {
			sys.On(core.EventAll, service.Broadcast)
		}
		g.Go(func() error {
			return service.Run(ctx)
		})
	}

	if conf.MQTT != nil {
		g.Go(func() error {
			return runMQTT(ctx, sys, sessions)
		})
	}

	if serveOpts.watch {
		g.Go(func() error {
			return sys.Watch(ctx, serveOpts.debounce)
		})
	}

	return g.Wait()
}

func runMQTT(ctx context.Context, sys *botscript.System, sessions *sio.Sessions) error {
	mc := sys.Conf.MQTT
	opts := sio.NewMQTTOptions(mc.Broker, mc.ClientID, mc.Username, mc.Password, mc.KeepAlive)

	m := sio.NewMQTT(opts)
	m.SubTopics = strings.Join(mc.Topics, ",")
	m.Logger = logger.Named("mqtt")
	if mc.ReplyTopic != "" {
		m.ReplyTopic = mc.ReplyTopic
	}
	if mc.EventTopic != "" {
		m.EventTopic = mc.EventTopic
		sys.On(core.EventAll, m.Broadcast)
	}

	if err := m.Start(ctx); err != nil {
		return err
	}

	chat, err := sio.NewChat(ctx, sys.Bot, sessions, m)
	if err != nil {
		return err
	}
	chat.Logger = logger.Named("chat")

	if err := chat.Loop(ctx); err != nil {
		logger.Warn("mqtt chat loop", zap.Error(err))
	}
	return m.Stop(ctx)
}

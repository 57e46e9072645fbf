package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/golang/glog"

	"github.com/flightlink/msp.go/pkg/msp"
	"github.com/flightlink/msp.go/pkg/telemetry/mqtt"
)

var (
	device   = "/dev/ttyUSB0"
	baud     = msp.DefaultBaud
	mqttURL  = "mqtt://localhost:1883/msp/"
	interval = time.Second
	timeout  = 500 * time.Millisecond
	commands = "101,106,108"
)

func init() {
	if val := os.Getenv("MSP_DEVICE"); val != "" {
		device = val
	}
	if val := os.Getenv("MSP_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&device, "device", device, "Serial device of the flight controller.")
	flag.IntVar(&baud, "baud", baud, "Serial baud rate.")
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.DurationVar(&interval, "interval", interval, "Polling interval.")
	flag.DurationVar(&timeout, "timeout", timeout, "Per-command response timeout.")
	flag.StringVar(&commands, "commands", commands, "Comma-separated command codes to poll.")
}

func parseCommands(s string) ([]byte, error) {
	var codes []byte
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		code, err := strconv.ParseUint(item, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("bad command code %q: %w", item, err)
		}
		codes = append(codes, byte(code))
	}
	if len(codes) == 0 {
		return nil, fmt.Errorf("no command codes to poll")
	}
	return codes, nil
}

func main() {
	flag.Parse()

	codes, err := parseCommands(commands)
	if err != nil {
		glog.Exit(err)
	}

	driver, err := msp.Open(msp.Config{Device: device, Baud: baud})
	if err != nil {
		glog.Exitf("open %s: %v", device, err)
	}
	defer driver.Close()

	pub, err := mqtt.NewPublisher(mqttURL)
	if err != nil {
		glog.Exit(err)
	}
	if err = pub.Connect(); err != nil {
		glog.Exitf("connect %s: %v", mqttURL, err)
	}
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		glog.Info("stop requested")
		cancel()
	}()

	glog.Infof("polling %d commands on %s every %v", len(codes), device, interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll(ctx, driver, pub, codes)
		}
	}
}

func poll(ctx context.Context, driver *msp.Driver, pub *mqtt.Publisher, codes []byte) {
	for _, code := range codes {
		frame, err := driver.SendContext(ctx, code, nil, timeout)
		if err != nil {
			if err == context.Canceled {
				return
			}
			glog.Warningf("poll cmd=%d: %v", code, err)
			continue
		}
		topic := strconv.Itoa(int(frame.Cmd))
		if err = pub.Publish(topic, frame.Payload); err != nil {
			glog.Warningf("publish cmd=%d: %v", frame.Cmd, err)
		}
	}
}

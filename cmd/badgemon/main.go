package main

import (
	"encoding/hex"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/robotalks/lorabadge/pkg/radio/mqtt"
)

var (
	mqttURL  = "mqtt://localhost:1883/lora/"
	downlink string
)

func init() {
	if val := os.Getenv("BADGE_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&downlink, "downlink", downlink, "Send DEVICE:HEX once connected.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	opts, prefix, err := mqtt.ClientOptionsFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	q := mqtt.NewQueue(opts, prefix)
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
	defer q.Close()

	if downlink != "" {
		sendDownlink(q, downlink)
	}

	q.Sub("+/up", mqtt.Handler(func(topic string, payload []byte) {
		msg, err := mqtt.DecodeUplink(payload)
		if err != nil {
			log.Printf("%s: bad uplink: %v", topic, err)
			return
		}
		log.Printf("%s: [%s #%d] % X", topic, msg.DeviceID, msg.Seq, msg.Payload)
	}))
	<-(chan struct{})(nil)
}

func sendDownlink(q *mqtt.Queue, spec string) {
	pos := strings.IndexByte(spec, ':')
	if pos <= 0 {
		log.Fatalf("bad downlink %q, expect DEVICE:HEX", spec)
	}
	data, err := hex.DecodeString(spec[pos+1:])
	if err != nil {
		log.Fatalf("bad downlink payload: %v", err)
	}
	encoded, err := mqtt.EncodeDownlink(data)
	if err != nil {
		log.Fatalln(err)
	}
	topic := spec[:pos] + "/down"
	if token := q.Pub(topic, encoded); token.Wait() && token.Error() != nil {
		log.Fatalf("publish %s: %v", topic, token.Error())
	}
	log.Printf("%s: sent % X", topic, data)
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/gorilla/websocket"
	"github.com/yanun0323/pkg/sys"

	"main/internal/model"
)

// tap subscribes to a running streamd or replayd and prints every
// event frame, one per line.
func main() {
	addr := flag.String("addr", "ws://127.0.0.1:8787/stream", "stream endpoint to tap")
	raw := flag.Bool("raw", false, "print journal lines instead of decoded summaries")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, *addr, nil)
	if err != nil {
		log.Fatalf("dial %s failed: %v", *addr, err)
	}
	defer conn.Close()

	go func() {
		select {
		case <-sys.Shutdown():
			cancel()
			conn.Close()
		case <-ctx.Done():
		}
	}()

	for {
		_, line, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Fatalf("read failed: %v", err)
		}
		if *raw {
			fmt.Println(string(line))
			continue
		}
		e, err := model.Decode(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "undecodable frame: %v\n", err)
			continue
		}
		fmt.Println(summarize(e))
	}
}

func summarize(e model.Event) string {
	switch e.Kind {
	case model.KindKline:
		k := e.Kline
		return fmt.Sprintf("%d %s kline %s o=%s h=%s l=%s c=%s v=%s closed=%t",
			e.Seq, e.Symbol, k.Interval, k.Open, k.High, k.Low, k.Close, k.Volume, k.Closed)
	case model.KindAggTrade:
		t := e.AggTrade
		return fmt.Sprintf("%d %s aggTrade id=%d p=%s q=%s maker=%t",
			e.Seq, e.Symbol, t.TradeID, t.Price, t.Quantity, t.Maker)
	case model.KindMarkPrice:
		return fmt.Sprintf("%d %s markPrice p=%s", e.Seq, e.Symbol, e.MarkPrice.Price)
	case model.KindSpotTrade:
		t := e.SpotTrade
		return fmt.Sprintf("%d %s spotTrade id=%d p=%s q=%s",
			e.Seq, e.Symbol, t.TradeID, t.Price, t.Quantity)
	default:
		return fmt.Sprintf("%d %s %s", e.Seq, e.Symbol, e.Kind)
	}
}

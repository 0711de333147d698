package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type topicStat struct {
	messages int64
	bytes    int64
}

var (
	errorsExchange   int64
	errorsStream     int64
	warnsExchange    int64
	warnsStream      int64
	ordersSubmitted  int64
	ordersResting    int64
	ordersFilled     int64
	ordersRejected   int64
	cancelsSubmitted int64
	infoRequests     int64
	streamReconnects int64
	topics           sync.Map // map[string]*topicStat
)

func recordWarn(component string) {
	if strings.Contains(component, "exchange") || strings.Contains(component, "transport") {
		atomic.AddInt64(&warnsExchange, 1)
	} else if strings.Contains(component, "stream") {
		atomic.AddInt64(&warnsStream, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "exchange") || strings.Contains(component, "transport") {
		atomic.AddInt64(&errorsExchange, 1)
	} else if strings.Contains(component, "stream") {
		atomic.AddInt64(&errorsStream, 1)
	}
}

func IncrementOrdersSubmitted(n int) {
	atomic.AddInt64(&ordersSubmitted, int64(n))
}

func IncrementOrdersResting(n int) {
	atomic.AddInt64(&ordersResting, int64(n))
}

func IncrementOrdersFilled(n int) {
	atomic.AddInt64(&ordersFilled, int64(n))
}

func IncrementOrdersRejected(n int) {
	atomic.AddInt64(&ordersRejected, int64(n))
}

func IncrementCancelsSubmitted(n int) {
	atomic.AddInt64(&cancelsSubmitted, int64(n))
}

func IncrementInfoRequest() {
	atomic.AddInt64(&infoRequests, 1)
}

func IncrementStreamReconnect() {
	atomic.AddInt64(&streamReconnects, 1)
}

// RecordTopicMessage counts one inbound stream message for a topic channel.
func RecordTopicMessage(channel string, size int) {
	v, _ := topics.LoadOrStore(channel, &topicStat{})
	ts := v.(*topicStat)
	atomic.AddInt64(&ts.messages, 1)
	atomic.AddInt64(&ts.bytes, int64(size))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of order-flow and stream statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	topicData := map[string]map[string]int64{}
	topics.Range(func(k, v any) bool {
		name := k.(string)
		ts := v.(*topicStat)
		topicData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&ts.messages),
			"bytes":    atomic.LoadInt64(&ts.bytes),
		}
		return true
	})

	fields := Fields{
		"errors_exchange":   atomic.LoadInt64(&errorsExchange),
		"errors_stream":     atomic.LoadInt64(&errorsStream),
		"warns_exchange":    atomic.LoadInt64(&warnsExchange),
		"warns_stream":      atomic.LoadInt64(&warnsStream),
		"orders_submitted":  atomic.LoadInt64(&ordersSubmitted),
		"orders_resting":    atomic.LoadInt64(&ordersResting),
		"orders_filled":     atomic.LoadInt64(&ordersFilled),
		"orders_rejected":   atomic.LoadInt64(&ordersRejected),
		"cancels_submitted": atomic.LoadInt64(&cancelsSubmitted),
		"info_requests":     atomic.LoadInt64(&infoRequests),
		"stream_reconnects": atomic.LoadInt64(&streamReconnects),
		"goroutines":        runtime.NumGoroutine(),
		"topics":            topicData,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("OrdersSubmitted"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["orders_submitted"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("OrdersResting"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["orders_resting"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("OrdersFilled"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["orders_filled"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("OrdersRejected"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["orders_rejected"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("CancelsSubmitted"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["cancels_submitted"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("InfoRequests"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["info_requests"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("StreamReconnects"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["stream_reconnects"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsExchange"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_exchange"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsStream"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_stream"].(int64)))},
	)

	for name, stats := range topicData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("TopicMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Topic"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("TopicBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Topic"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}

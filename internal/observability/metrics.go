package observability

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "room_chat_http_requests_total",
			Help: "Total number of HTTP requests processed by the room chat service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "room_chat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	grpcClientHandledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "room_chat_grpc_client_handled_total",
			Help: "Total number of gRPC calls completed by the client.",
		},
		[]string{"grpc_service", "grpc_method", "grpc_code"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "room_chat_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "room_chat_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"event"},
	)
	activeRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "room_chat_active_rooms",
			Help: "Number of rooms with at least one live member or pending write.",
		},
	)
	joinsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "room_chat_joins_total",
			Help: "Total number of room joins by result.",
		},
		[]string{"result"},
	)
	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "room_chat_messages_total",
			Help: "Total number of send attempts by result.",
		},
		[]string{"result"},
	)
	deliveryFaultsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "room_chat_delivery_faults_total",
			Help: "Total number of connections dropped because they could not take an event.",
		},
	)
	historySize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "room_chat_history_messages",
			Help:    "Number of messages replayed on join.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "room_chat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		grpcClientHandledTotal,
		wsActiveConnections,
		wsEventsTotal,
		activeRooms,
		joinsTotal,
		messagesTotal,
		deliveryFaultsTotal,
		historySize,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func GRPCClientMetricsUnaryInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		err := invoker(ctx, method, req, reply, cc, opts...)
		service, name := splitFullMethod(method)
		grpcClientHandledTotal.WithLabelValues(service, name, status.Code(err).String()).Inc()
		return err
	}
}

func splitFullMethod(fullMethod string) (string, string) {
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 3 {
		return "unknown", "unknown"
	}
	return parts[1], parts[2]
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func SetActiveRooms(n int) {
	activeRooms.Set(float64(n))
}

func IncJoin(result string) {
	joinsTotal.WithLabelValues(result).Inc()
}

func IncMessage(result string) {
	messagesTotal.WithLabelValues(result).Inc()
}

func IncDeliveryFault() {
	deliveryFaultsTotal.Inc()
}

func ObserveHistorySize(n int) {
	historySize.Observe(float64(n))
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

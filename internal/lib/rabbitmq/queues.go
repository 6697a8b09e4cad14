package rabbitmq

// NotificationsExchange обменник для напоминаний.
const NotificationsExchange = "notifications"

const (
	// RoutingTrialUpcoming пробный период заканчивается завтра
	RoutingTrialUpcoming = "trial.upcoming"
	// RoutingTrialExpired пробный период закончился сегодня
	RoutingTrialExpired = "trial.expired"
)

const prefetch = 10

// QueueConfig очередь и ключ, которым она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// TrialQueues очереди напоминаний о пробном периоде.
func TrialQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "trial.upcoming", RoutingKey: RoutingTrialUpcoming},
		{QueueName: "trial.expired", RoutingKey: RoutingTrialExpired},
	}
}

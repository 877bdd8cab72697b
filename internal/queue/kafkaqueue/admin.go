package kafkaqueue

import (
	"errors"
	"fmt"

	"github.com/Shopify/sarama"

	"github.com/flare152/flare-im-core/internal/logging"
)

// TopicSpec describes the partitions/replication a topic should have;
// ported from the teacher's topic_ensure.go EnsureTopicsWith, trimmed
// to the create-or-expand path this repo actually needs.
type TopicSpec struct {
	Name              string
	Partitions        int32
	ReplicationFactor int16
}

func (q *Queue) EnsureTopics(specs []TopicSpec) error {
	admin, err := sarama.NewClusterAdminFromClient(q.client)
	if err != nil {
		return err
	}
	defer admin.Close()

	for _, spec := range specs {
		descs, err := admin.DescribeTopics([]string{spec.Name})
		if err != nil {
			return fmt.Errorf("kafkaqueue: describe topic %s: %w", spec.Name, err)
		}
		exists := len(descs) == 1 && descs[0].Err == sarama.ErrNoError

		minISR := "1"
		if spec.ReplicationFactor >= 3 {
			minISR = "2"
		}

		if !exists {
			td := &sarama.TopicDetail{
				NumPartitions:     spec.Partitions,
				ReplicationFactor: spec.ReplicationFactor,
				ConfigEntries: map[string]*string{
					"cleanup.policy":                 strPtr("delete"),
					"min.insync.replicas":            strPtr(minISR),
					"unclean.leader.election.enable": strPtr("false"),
				},
			}
			if err := admin.CreateTopic(spec.Name, td, false); err != nil {
				var te *sarama.TopicError
				if errors.As(err, &te) && te.Err == sarama.ErrTopicAlreadyExists {
					logging.Infof("kafkaqueue: topic exists (race): %s", spec.Name)
					continue
				}
				return fmt.Errorf("kafkaqueue: create topic %s: %w", spec.Name, err)
			}
			logging.Infof("kafkaqueue: topic created: %s (partitions=%d rf=%d)", spec.Name, spec.Partitions, spec.ReplicationFactor)
			continue
		}

		curParts := int32(len(descs[0].Partitions))
		if spec.Partitions > curParts {
			if err := admin.CreatePartitions(spec.Name, spec.Partitions, nil, false); err != nil {
				return fmt.Errorf("kafkaqueue: expand partitions %s %d->%d: %w", spec.Name, curParts, spec.Partitions, err)
			}
			logging.Infof("kafkaqueue: partitions expanded: %s (%d -> %d)", spec.Name, curParts, spec.Partitions)
		}
	}
	return nil
}

func strPtr(s string) *string { return &s }

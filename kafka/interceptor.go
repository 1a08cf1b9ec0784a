package kafka

import (
	"log"

	"github.com/IBM/sarama"
)

type DeskInterceptor struct {
}

func (i *DeskInterceptor) OnSend(msg *sarama.ProducerMessage) {
	log.Printf("拦截到准备发送的消息，Topic: %s", msg.Topic)
	msg.Headers = append(msg.Headers, sarama.RecordHeader{
		Key:   []byte("intercepted-by"),
		Value: []byte("DeskInterceptor"),
	})
}

func NewDeskInterceptor() *DeskInterceptor {
	return &DeskInterceptor{}
}

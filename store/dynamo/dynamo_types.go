package dynamo

import (
	"strings"

	"github.com/zlnvch/drawroom/models"
)

const (
	userPrefix = "USER#"
	roomPrefix = "ROOM#"
	chatPrefix = "CHAT#"

	profileSK = "PROFILE"
	roomSK    = "META"
)

type dynamoUser struct {
	PK      string `dynamodbav:"PK"`
	SK      string `dynamodbav:"SK"`
	Id      string `dynamodbav:"Id"`
	Name    string `dynamodbav:"Name"`
	Created int64  `dynamodbav:"Created"`
}

func userToDynamo(u models.User) dynamoUser {
	return dynamoUser{
		PK:      userPrefix + u.Id,
		SK:      profileSK,
		Id:      u.Id,
		Name:    u.Name,
		Created: u.Created,
	}
}

func userFromDynamo(du dynamoUser) models.User {
	return models.User{Id: du.Id, Name: du.Name, Created: du.Created}
}

type dynamoRoom struct {
	PK      string `dynamodbav:"PK"`
	SK      string `dynamodbav:"SK"`
	Id      string `dynamodbav:"Id"`
	AdminId string `dynamodbav:"AdminId"`
	Created int64  `dynamodbav:"Created"`
}

func roomToDynamo(r models.Room) dynamoRoom {
	return dynamoRoom{
		PK:      roomPrefix + r.Slug,
		SK:      roomSK,
		Id:      r.Id,
		AdminId: r.AdminId,
		Created: r.Created,
	}
}

func roomFromDynamo(dr dynamoRoom) models.Room {
	return models.Room{
		Id:      dr.Id,
		Slug:    strings.TrimPrefix(dr.PK, roomPrefix),
		AdminId: dr.AdminId,
		Created: dr.Created,
	}
}

// Chat entries share one partition per room. SK is the entry id, a UUIDv7,
// so SK order is creation order.
type dynamoChat struct {
	PK      string `dynamodbav:"PK"`
	SK      string `dynamodbav:"SK"`
	UserId  string `dynamodbav:"UserId"`
	Message string `dynamodbav:"Message"`
	Created int64  `dynamodbav:"Created"`
}

func chatToDynamo(c models.Chat) dynamoChat {
	return dynamoChat{
		PK:      chatPrefix + c.RoomId,
		SK:      c.Id,
		UserId:  c.UserId,
		Message: c.Message,
		Created: c.Created,
	}
}

func chatFromDynamo(dc dynamoChat) models.Chat {
	return models.Chat{
		Id:      dc.SK,
		RoomId:  strings.TrimPrefix(dc.PK, chatPrefix),
		UserId:  dc.UserId,
		Message: dc.Message,
		Created: dc.Created,
	}
}

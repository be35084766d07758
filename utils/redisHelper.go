package utils

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"time"

	"bitbucket.org/auditdesk/audit_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

/* generic functions */

func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

/* Redis */

// store instance, Type:$id
func StoreRedis[T any](obj any, id any) error {
	key := GetTypeName[T]() + ":" + fmt.Sprint(id)
	return config.SetRedisObject(key, obj, GetCacheLifespan())
}

// store list, TypeList or TypeList:$group_id
func StoreRedisList[T any](obj any, groupId string) error {
	return config.SetRedisObject(listKey[T](groupId), obj, GetCacheLifespan())
}

// get from redis
// returns nil if does not exist
func RetrieveRedis[T any](id any) (*T, error) {
	var result *T
	key := GetTypeName[T]() + ":" + fmt.Sprint(id)
	exists, err := config.GetRedisObject(key, &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return result, nil
}

// retrieve a list.
// groupId can be empty
func RetrieveRedisList[T any](groupId string) ([]*T, error) {
	var result []*T
	exists, err := config.GetRedisObject(listKey[T](groupId), &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return result, nil
}

// clear list, TypeList:$group_id
func RemoveRedisList[T any](groupId string) error {
	return config.RemoveRedisKey(listKey[T](groupId))
}

// remove an instance, Type:$id
func RemoveRedisItem[T any](id any) error {
	key := GetTypeName[T]() + ":" + fmt.Sprint(id)
	return config.RemoveRedisKey(key)
}

func ClearRedisAdmin[T any]() error {
	return config.RemoveRedisKey("All"+GetTypeName[T]()+"List", "All"+GetTypeName[T]()+"Map")
}

func listKey[T any](groupId string) string {
	if groupId == "" {
		return GetTypeName[T]() + "List"
	}
	return GetTypeName[T]() + "List:" + groupId
}

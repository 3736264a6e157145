// registry.go — Process-wide backend object table. Objects created by
// handlers are exposed to the caller as opaque "<Type>#<index>" refs; owner
// links let destruction of a parent cascade to its children.
package api

import (
	"sort"
	"strconv"
	"strings"
	"sync"
)

// BackendObject is a live server-side object addressable through a ref.
type BackendObject interface {
	FrontendClassDef() *ClassDef
}

var (
	gcQueueMutex   sync.Mutex
	backendObjects = map[string]BackendObject{}
	// ownerLinks records child ref -> owner ref for cascade deletion.
	ownerLinks   = map[string]string{}
	objectCounts = map[string]uint32{}
)

// StoreBackendObject stores the object and returns its new ref. A non-empty
// ownerRef records an owner-of link so the child dies with its owner.
func StoreBackendObject(obj BackendObject, ownerRef string) string {
	gcQueueMutex.Lock()
	defer gcQueueMutex.Unlock()
	typeName := obj.FrontendClassDef().Name
	index := objectCounts[typeName]
	objectCounts[typeName] = index + 1
	ref := typeName + "#" + strconv.FormatUint(uint64(index), 10)
	backendObjects[ref] = obj
	if ownerRef != "" {
		ownerLinks[ref] = ownerRef
	}
	backendObjectGauge.Set(float64(len(backendObjects)))
	return ref
}

// GetBackendObject resolves a ref. A miss writes Internal into the reply.
func GetBackendObject(ref string, out *ReplyInfo) BackendObject {
	gcQueueMutex.Lock()
	defer gcQueueMutex.Unlock()
	obj, ok := backendObjects[ref]
	if !ok || obj == nil {
		out.Exception = NewErrorMsg(ErrInternal, "Object does not exist")
		return nil
	}
	return obj
}

// HasBackendObject reports whether the ref resolves.
func HasBackendObject(ref string) bool {
	gcQueueMutex.Lock()
	defer gcQueueMutex.Unlock()
	_, ok := backendObjects[ref]
	return ok
}

// BackendObjectsCleaner is the handler deleting the refs in the param list
// together with every object they own. Unknown refs are logged and skipped.
func BackendObjectsCleaner(in *CallInfo, out *ReplyInfo) {
	gcQueueMutex.Lock()
	defer gcQueueMutex.Unlock()
	var deleted []string
	for _, item := range in.ParamList {
		ref, ok := item.(string)
		if !ok {
			continue
		}
		deleted = append(deleted, cleanLocked(ref)...)
	}
	backendObjectGauge.Set(float64(len(backendObjects)))
	log.Infow("deleted objects", "refs", "["+strings.Join(deleted, ",")+"]")
}

// cleanLocked removes one ref, its owner link and all objects it owns.
// Callers hold gcQueueMutex.
func cleanLocked(ref string) []string {
	delete(ownerLinks, ref)
	if _, ok := backendObjects[ref]; !ok {
		log.Warnw("no such object living", "ref", ref)
		return nil
	}
	delete(backendObjects, ref)
	deleted := []string{ref}
	var owned []string
	for child, owner := range ownerLinks {
		if owner == ref {
			owned = append(owned, child)
		}
	}
	sort.Strings(owned)
	for _, child := range owned {
		deleted = append(deleted, cleanLocked(child)...)
	}
	return deleted
}
